// Package historian drains the session event queue from Redis into Postgres.
// It runs as its own process so hosts never wait on the database.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/tablehost/internal/cache"
	"github.com/jason-s-yu/tablehost/internal/database"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Popper is the part of a Redis client the historian needs.
type Popper interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Options tunes batching and abandonment. Zero values take the defaults.
type Options struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
	Inactivity time.Duration // a session silent this long is marked abandoned
	Logger     *logrus.Logger
}

// Service batches EventRecords popped from the queue and writes them in one
// transaction per batch.
type Service struct {
	rdb        Popper
	db         database.TxBeginner
	queue      string
	batchSize  int
	flushDelay time.Duration
	inactivity time.Duration
	log        *logrus.Entry

	batchMu  sync.Mutex
	batch    []cache.EventRecord
	lastSeen map[uuid.UUID]time.Time
	now      func() time.Time
}

// New builds a Service.
func New(rdb Popper, db database.TxBeginner, opts Options) *Service {
	if opts.Queue == "" {
		opts.Queue = cache.QueueName()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.Inactivity <= 0 {
		opts.Inactivity = 10 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		rdb:        rdb,
		db:         db,
		queue:      opts.Queue,
		batchSize:  opts.BatchSize,
		flushDelay: opts.FlushDelay,
		inactivity: opts.Inactivity,
		log:        logger.WithField("component", "historian"),
		batch:      make([]cache.EventRecord, 0, opts.BatchSize),
		lastSeen:   make(map[uuid.UUID]time.Time),
		now:        time.Now,
	}
}

// Run pops until ctx is done, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	s.log.WithField("queue", s.queue).Info("historian started")
	go s.tick(ctx)

	for ctx.Err() == nil {
		if err := s.popOne(ctx, time.Second); err != nil && ctx.Err() == nil {
			s.log.Errorf("BLPop: %v", err)
			time.Sleep(time.Second)
		}
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Flush(flushCtx); err != nil {
		return err
	}
	s.log.Info("historian stopped")
	return nil
}

func (s *Service) tick(ctx context.Context) {
	flush := time.NewTicker(s.flushDelay)
	defer flush.Stop()
	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-flush.C:
			if err := s.Flush(ctx); err != nil {
				s.log.Errorf("flush: %v", err)
			}
		case <-sweep.C:
			s.Sweep(ctx)
		}
	}
}

// popOne waits up to timeout for a record. A timeout is not an error.
func (s *Service) popOne(ctx context.Context, timeout time.Duration) error {
	res, err := s.rdb.BLPop(ctx, timeout, s.queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return nil
	}
	var rec cache.EventRecord
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		s.log.Warnf("invalid event record: %v", err)
		return nil
	}
	s.add(ctx, rec)
	return nil
}

func (s *Service) add(ctx context.Context, rec cache.EventRecord) {
	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	s.lastSeen[rec.SessionID] = s.now()
	full := len(s.batch) >= s.batchSize
	s.batchMu.Unlock()
	if full {
		if err := s.Flush(ctx); err != nil {
			s.log.Errorf("flush: %v", err)
		}
	}
}

// Flush writes the pending batch. On failure the batch is kept for the next
// attempt.
func (s *Service) Flush(ctx context.Context) error {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	if len(s.batch) == 0 {
		return nil
	}

	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range s.batch {
			if err := insertEventTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertEventTx: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Debugf("flushed %d events", len(s.batch))
	s.batch = s.batch[:0]
	return nil
}

// Sweep marks sessions abandoned once they have been silent for the
// inactivity window.
func (s *Service) Sweep(ctx context.Context) {
	s.batchMu.Lock()
	now := s.now()
	var idle []uuid.UUID
	for id, last := range s.lastSeen {
		if now.Sub(last) > s.inactivity {
			idle = append(idle, id)
			delete(s.lastSeen, id)
		}
	}
	s.batchMu.Unlock()

	for _, id := range idle {
		err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
			q := `
				UPDATE sessions
				SET status = 'abandoned'
				WHERE id = $1 AND status = 'active'
			`
			_, e := tx.Exec(ctx, q, id)
			return e
		})
		if err != nil {
			s.log.Errorf("failed to mark session %v abandoned: %v", id, err)
			continue
		}
		s.log.Infof("marked session %v abandoned after inactivity", id)
	}
}

// insertEventTx upserts the session row and inserts one event.
func insertEventTx(ctx context.Context, tx pgx.Tx, rec cache.EventRecord) error {
	at := time.UnixMilli(rec.Timestamp)
	upsertSession := `
		INSERT INTO sessions (id, game, status, first_seen, last_seen)
		VALUES ($1, $2, 'active', $3, $3)
		ON CONFLICT (id)
		DO UPDATE SET last_seen = GREATEST(sessions.last_seen, $3), status = 'active', game = EXCLUDED.game
	`
	if _, err := tx.Exec(ctx, upsertSession, rec.SessionID, string(rec.Game), at); err != nil {
		return err
	}
	insertEvent := `
		INSERT INTO session_events (session_id, seq, kind, player_id, message, at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, seq) DO NOTHING
	`
	_, err := tx.Exec(ctx, insertEvent,
		rec.SessionID, rec.Seq, string(rec.Kind), database.Nullable(rec.PlayerID), rec.Message, at,
	)
	return err
}
