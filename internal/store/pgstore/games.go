package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/store"
)

const gameSummaryColumns = `
	id, white_login, black_login, time_control, state, position,
	white_clock_ms, black_clock_ms, white_to_move, last_move_at,
	result, winner, created_at, ended_at`

// Save upserts the session. Ended sessions also get their PGN written.
func (s *Store) Save(ctx context.Context, g *domain.GameSession) error {
	if g == nil || g.ID == "" {
		return store.ErrInvalidRecord
	}
	moves := g.Moves
	if moves == nil {
		moves = []string{}
	}
	movesRaw, err := json.Marshal(moves)
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}
	pgn := ""
	if g.State == domain.StateEnded {
		pgn = s.pgnFor(ctx, g)
	}

	const q = `
		INSERT INTO arena_games (
			id, white_login, black_login, time_control, state, position, moves,
			white_clock_ms, black_clock_ms, white_to_move, last_move_at,
			result, winner, pgn, created_at, ended_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			state=EXCLUDED.state,
			position=EXCLUDED.position,
			moves=EXCLUDED.moves,
			white_clock_ms=EXCLUDED.white_clock_ms,
			black_clock_ms=EXCLUDED.black_clock_ms,
			white_to_move=EXCLUDED.white_to_move,
			last_move_at=EXCLUDED.last_move_at,
			result=EXCLUDED.result,
			winner=EXCLUDED.winner,
			pgn=EXCLUDED.pgn,
			ended_at=EXCLUDED.ended_at`

	_, err = s.db.ExecContext(ctx, q,
		g.ID, g.White, g.Black, string(g.TimeControl), string(g.State), g.Position, string(movesRaw),
		g.WhiteClock, g.BlackClock, g.WhiteToMove, nullTime(g.LastMoveAt),
		string(g.Result), g.Winner, pgn, g.CreatedAt, nullTime(g.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert game: %w", err)
	}
	return nil
}

func (s *Store) pgnFor(ctx context.Context, g *domain.GameSession) string {
	san, err := rules.SAN(g.Moves)
	if err != nil {
		obslog.L().Warn("pgn_replay_error", zap.String("game_id", g.ID), zap.Error(err))
	}
	names := [2]string{g.White, g.Black}
	for i, login := range names {
		if p, err := s.FindByLogin(ctx, login); err == nil && p != nil {
			names[i] = p.DisplayName
		}
	}
	return buildPGN(pgnGame{
		White:       names[0],
		Black:       names[1],
		TimeControl: string(g.TimeControl),
		Termination: string(g.Result.Reason()),
		Result:      mapResultToPGN(g.Result.Outcome()),
		Date:        g.EndedAt,
		SAN:         san,
	})
}

func scanGame(row rowScanner, withMoves bool) (*domain.GameSession, error) {
	var (
		g          domain.GameSession
		tc, state  string
		result     string
		lastMoveAt sql.NullTime
		endedAt    sql.NullTime
		movesRaw   []byte
	)
	dest := []any{
		&g.ID, &g.White, &g.Black, &tc, &state, &g.Position,
		&g.WhiteClock, &g.BlackClock, &g.WhiteToMove, &lastMoveAt,
		&result, &g.Winner, &g.CreatedAt, &endedAt,
	}
	if withMoves {
		dest = append(dest, &movesRaw)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	g.TimeControl = domain.TimeControl(tc)
	g.State = domain.GameState(state)
	g.Result = domain.GameResult(result)
	if lastMoveAt.Valid {
		g.LastMoveAt = lastMoveAt.Time
	}
	if endedAt.Valid {
		g.EndedAt = endedAt.Time
	}
	if withMoves {
		g.Moves = []string{}
		if len(movesRaw) > 0 {
			if err := json.Unmarshal(movesRaw, &g.Moves); err != nil {
				return nil, fmt.Errorf("unmarshal moves: %w", err)
			}
		}
	}
	return &g, nil
}

func (s *Store) findOne(ctx context.Context, withMoves bool, where string, args ...any) (*domain.GameSession, error) {
	cols := gameSummaryColumns
	if withMoves {
		cols += `, moves`
	}
	q := `SELECT ` + cols + ` FROM arena_games ` + where
	g, err := scanGame(s.db.QueryRowContext(ctx, q, args...), withMoves)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select game: %w", err)
	}
	return g, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*domain.GameSession, error) {
	return s.findOne(ctx, false, `WHERE id = $1`, id)
}

func (s *Store) FindByIDWithMoves(ctx context.Context, id string) (*domain.GameSession, error) {
	return s.findOne(ctx, true, `WHERE id = $1`, id)
}

func (s *Store) FindActiveByPlayer(ctx context.Context, login string) (*domain.GameSession, error) {
	return s.findOne(ctx, true,
		`WHERE state = 'IN_PROGRESS' AND (white_login = $1 OR black_login = $1) ORDER BY created_at DESC LIMIT 1`,
		domain.NormalizeLogin(login))
}

func (s *Store) FindByStates(ctx context.Context, states ...domain.GameState) ([]*domain.GameSession, error) {
	names := make([]string, 0, len(states))
	for _, st := range states {
		names = append(names, string(st))
	}
	q := `SELECT ` + gameSummaryColumns + ` FROM arena_games WHERE state = ANY($1) ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, q, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("select games by state: %w", err)
	}
	defer rows.Close()

	out := []*domain.GameSession{}
	for rows.Next() {
		g, err := scanGame(rows, false)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
