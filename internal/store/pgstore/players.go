package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/store"
)

const playerColumns = `
	login, display_name,
	bullet_rating, bullet_wins, bullet_losses, bullet_draws,
	blitz_rating, blitz_wins, blitz_losses, blitz_draws,
	rapid_rating, rapid_wins, rapid_losses, rapid_draws,
	is_online, last_seen, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*domain.Player, error) {
	var (
		p        domain.Player
		lastSeen sql.NullTime
	)
	err := row.Scan(
		&p.Login, &p.DisplayName,
		&p.Bullet.Rating, &p.Bullet.Wins, &p.Bullet.Losses, &p.Bullet.Draws,
		&p.Blitz.Rating, &p.Blitz.Wins, &p.Blitz.Losses, &p.Blitz.Draws,
		&p.Rapid.Rating, &p.Rapid.Wins, &p.Rapid.Losses, &p.Rapid.Draws,
		&p.Online, &lastSeen, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		p.LastSeen = lastSeen.Time
	}
	return &p, nil
}

func (s *Store) FindByLogin(ctx context.Context, login string) (*domain.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM arena_players WHERE login = $1`
	p, err := scanPlayer(s.db.QueryRowContext(ctx, q, domain.NormalizeLogin(login)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select player: %w", err)
	}
	return p, nil
}

// Ensure inserts a default player and returns the stored row either way.
func (s *Store) Ensure(ctx context.Context, login, displayName string) (*domain.Player, error) {
	key := domain.NormalizeLogin(login)
	if key == "" {
		return nil, store.ErrInvalidRecord
	}
	if displayName == "" {
		displayName = key
	}
	const q = `
		INSERT INTO arena_players (login, display_name, bullet_rating, blitz_rating, rapid_rating, created_at)
		VALUES ($1, $2, $3, $3, $3, $4)
		ON CONFLICT (login) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, q, key, displayName, domain.DefaultRating, s.now()); err != nil {
		return nil, fmt.Errorf("insert player: %w", err)
	}
	return s.FindByLogin(ctx, key)
}

func (s *Store) SetOnline(ctx context.Context, login string, online bool, at time.Time) error {
	const q = `UPDATE arena_players SET is_online = $2, last_seen = $3 WHERE login = $1`
	if _, err := s.db.ExecContext(ctx, q, domain.NormalizeLogin(login), online, nullTime(at)); err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	return nil
}

func (s *Store) SetDisplayName(ctx context.Context, login, displayName string) error {
	const q = `UPDATE arena_players SET display_name = $2 WHERE login = $1`
	if _, err := s.db.ExecContext(ctx, q, domain.NormalizeLogin(login), displayName); err != nil {
		return fmt.Errorf("update display name: %w", err)
	}
	return nil
}

// ApplyResult writes the rating and bumps one counter in a single statement.
func (s *Store) ApplyResult(ctx context.Context, login string, tc domain.TimeControl, rating int, outcome domain.PlayerOutcome) error {
	q := applyResultQuery(tc, outcome)
	res, err := s.db.ExecContext(ctx, q, domain.NormalizeLogin(login), rating)
	if err != nil {
		return fmt.Errorf("apply result: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrInvalidRecord
	}
	return nil
}

// applyResultQuery builds the update from fixed column names only.
func applyResultQuery(tc domain.TimeControl, outcome domain.PlayerOutcome) string {
	prefix := "blitz"
	switch tc {
	case domain.Bullet:
		prefix = "bullet"
	case domain.Rapid:
		prefix = "rapid"
	}
	counter := prefix + "_draws"
	switch outcome {
	case domain.PlayerWin:
		counter = prefix + "_wins"
	case domain.PlayerLoss:
		counter = prefix + "_losses"
	}
	return fmt.Sprintf(`UPDATE arena_players SET %s_rating = $2, %s = %s + 1 WHERE login = $1`, prefix, counter, counter)
}

func (s *Store) ListOnline(ctx context.Context, exceptLogin string) ([]*domain.Player, error) {
	q := `SELECT ` + playerColumns + ` FROM arena_players WHERE is_online AND login <> $1 ORDER BY login`
	rows, err := s.db.QueryContext(ctx, q, domain.NormalizeLogin(exceptLogin))
	if err != nil {
		return nil, fmt.Errorf("select online players: %w", err)
	}
	defer rows.Close()

	out := []*domain.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
