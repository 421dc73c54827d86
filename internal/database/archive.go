// internal/database/archive.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/tablehost/internal/models"
)

// Schema creates the archive tables.
const Schema = `
CREATE TABLE IF NOT EXISTS games (
	id          uuid PRIMARY KEY,
	session_id  uuid NOT NULL,
	game        text NOT NULL,
	settings    jsonb NOT NULL,
	winner_id   text,
	loser_id    text,
	rounds      int NOT NULL DEFAULT 0,
	started_at  timestamptz NOT NULL,
	ended_at    timestamptz NOT NULL
);
CREATE TABLE IF NOT EXISTS game_results (
	game_id    uuid NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	player_id  text NOT NULL,
	name       text NOT NULL,
	is_bot     boolean NOT NULL,
	did_win    boolean NOT NULL,
	remaining  int NOT NULL,
	PRIMARY KEY (game_id, player_id)
);
CREATE TABLE IF NOT EXISTS sessions (
	id          uuid PRIMARY KEY,
	game        text NOT NULL,
	status      text NOT NULL DEFAULT 'active',
	first_seen  timestamptz NOT NULL,
	last_seen   timestamptz NOT NULL
);
CREATE TABLE IF NOT EXISTS session_events (
	session_id  uuid NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq         int NOT NULL,
	kind        text NOT NULL,
	player_id   text,
	message     text NOT NULL,
	at          timestamptz NOT NULL,
	PRIMARY KEY (session_id, seq)
);
`

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Execer runs a statement.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Migrate applies Schema.
func Migrate(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Archive stores finished games.
type Archive struct {
	db TxBeginner
}

// NewArchive wraps a pool.
func NewArchive(db TxBeginner) *Archive {
	return &Archive{db: db}
}

// Archive persists the game row and one row per seat in a single transaction.
func (a *Archive) Archive(ctx context.Context, res models.GameResult) error {
	settings, err := json.Marshal(res.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	err = pgx.BeginTxFunc(ctx, a.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		insertGame := `
			INSERT INTO games (id, session_id, game, settings, winner_id, loser_id, rounds, started_at, ended_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING
		`
		if _, e := tx.Exec(ctx, insertGame,
			res.ID, res.SessionID, string(res.Game), settings,
			Nullable(res.WinnerID), Nullable(res.LoserID), res.Rounds,
			res.StartedAt, res.EndedAt,
		); e != nil {
			return e
		}

		for _, p := range res.Players {
			q := `
				INSERT INTO game_results (game_id, player_id, name, is_bot, did_win, remaining)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (game_id, player_id)
				DO UPDATE SET did_win=$5, remaining=$6
			`
			if _, e := tx.Exec(ctx, q, res.ID, p.PlayerID, p.Name, p.IsBot, p.Won, p.Remaining); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx insert game or results: %w", err)
	}
	return nil
}

// Nullable maps an empty id to SQL NULL.
func Nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
