// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tablehost/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list that receives session log entries.
var DefaultQueueName = "tablehost_events"

// DefaultSessionPrefix namespaces reconnection hints.
var DefaultSessionPrefix = "tablehost:session:"

// EventRecord is one published log entry, tagged with its session.
type EventRecord struct {
	SessionID uuid.UUID       `json:"session_id"`
	Game      models.GameKind `json:"game"`
	Seq       int             `json:"seq"`
	Kind      models.LogKind  `json:"kind"`
	PlayerID  string          `json:"player_id,omitempty"`
	Message   string          `json:"message"`
	Timestamp int64           `json:"timestamp"`
}

// Connect returns a Redis client configured from the environment:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func Connect(ctx context.Context) (*redis.Client, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ListPusher is the part of a Redis client the publisher needs.
type ListPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// EventPublisher pushes session log entries onto a Redis list for offline
// consumers.
type EventPublisher struct {
	rdb   ListPusher
	queue string
}

// QueueName is HISTORIAN_QUEUE_NAME, or DefaultQueueName.
func QueueName() string {
	return getEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName)
}

// NewEventPublisher publishes to QueueName.
func NewEventPublisher(rdb ListPusher) *EventPublisher {
	return &EventPublisher{rdb: rdb, queue: QueueName()}
}

// Publish serializes entry and pushes it to the queue.
func (p *EventPublisher) Publish(ctx context.Context, sessionID uuid.UUID, game models.GameKind, entry models.LogEntry) error {
	data, err := json.Marshal(EventRecord{
		SessionID: sessionID,
		Game:      game,
		Seq:       entry.Seq,
		Kind:      entry.Kind,
		PlayerID:  entry.PlayerID,
		Message:   entry.Message,
		Timestamp: entry.At.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal EventRecord: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}

// KV is the part of a Redis client the session store needs.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// SessionStore keeps reconnection hints in Redis so they survive a guest
// process restart.
type SessionStore struct {
	rdb    KV
	prefix string
	ttl    time.Duration
}

// NewSessionStore returns a store whose entries expire after ttl (0 keeps them).
func NewSessionStore(rdb KV, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, prefix: DefaultSessionPrefix, ttl: ttl}
}

// Load returns the hint saved under key. ok is false when none exists.
func (s *SessionStore) Load(ctx context.Context, key string) (models.Session, bool, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Session{}, false, nil
	}
	if err != nil {
		return models.Session{}, false, fmt.Errorf("load session %s: %w", key, err)
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return models.Session{}, false, fmt.Errorf("decode session %s: %w", key, err)
	}
	return sess, true, nil
}

// Save stores sess under key.
func (s *SessionStore) Save(ctx context.Context, key string, sess models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", key, err)
	}
	return nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
