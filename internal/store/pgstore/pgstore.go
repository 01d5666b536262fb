// Package pgstore persists players and game sessions in PostgreSQL.
package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/cheese-arena/internal/store"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ store.PlayerStore = (*Store)(nil)
	_ store.GameStore   = (*Store)(nil)
)

// Open connects with the pool settings used across the service and pings once.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return New(db), nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS arena_players (
	login          TEXT PRIMARY KEY,
	display_name   TEXT NOT NULL,
	bullet_rating  INTEGER NOT NULL DEFAULT 1200,
	bullet_wins    INTEGER NOT NULL DEFAULT 0,
	bullet_losses  INTEGER NOT NULL DEFAULT 0,
	bullet_draws   INTEGER NOT NULL DEFAULT 0,
	blitz_rating   INTEGER NOT NULL DEFAULT 1200,
	blitz_wins     INTEGER NOT NULL DEFAULT 0,
	blitz_losses   INTEGER NOT NULL DEFAULT 0,
	blitz_draws    INTEGER NOT NULL DEFAULT 0,
	rapid_rating   INTEGER NOT NULL DEFAULT 1200,
	rapid_wins     INTEGER NOT NULL DEFAULT 0,
	rapid_losses   INTEGER NOT NULL DEFAULT 0,
	rapid_draws    INTEGER NOT NULL DEFAULT 0,
	is_online      BOOLEAN NOT NULL DEFAULT FALSE,
	last_seen      TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS arena_games (
	id             TEXT PRIMARY KEY,
	white_login    TEXT NOT NULL REFERENCES arena_players(login),
	black_login    TEXT NOT NULL REFERENCES arena_players(login),
	time_control   TEXT NOT NULL,
	state          TEXT NOT NULL,
	position       TEXT NOT NULL,
	moves          JSONB NOT NULL DEFAULT '[]'::jsonb,
	white_clock_ms BIGINT NOT NULL,
	black_clock_ms BIGINT NOT NULL,
	white_to_move  BOOLEAN NOT NULL,
	last_move_at   TIMESTAMPTZ,
	result         TEXT NOT NULL DEFAULT '',
	winner         TEXT NOT NULL DEFAULT '',
	pgn            TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	ended_at       TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS arena_games_state_idx ON arena_games (state) WHERE state <> 'ENDED';
CREATE INDEX IF NOT EXISTS arena_games_white_idx ON arena_games (white_login);
CREATE INDEX IF NOT EXISTS arena_games_black_idx ON arena_games (black_login);
`

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
