package game

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/rating"
	"github.com/park285/cheese-arena/pkg/protocol"
)

// Snapshot loads a session and returns its client projection.
func (m *Manager) Snapshot(ctx context.Context, sessionID string) (*protocol.GameData, error) {
	g, err := m.games.FindByIDWithMoves(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}
	if g == nil {
		return nil, ErrGameNotFound
	}
	return m.projectLoad(ctx, g), nil
}

// Session returns the session summary without moves, or ErrGameNotFound.
func (m *Manager) Session(ctx context.Context, sessionID string) (*domain.GameSession, error) {
	g, err := m.games.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}
	if g == nil {
		return nil, ErrGameNotFound
	}
	return g, nil
}

// SnapshotOf projects an already loaded session.
func (m *Manager) SnapshotOf(ctx context.Context, g *domain.GameSession) *protocol.GameData {
	return m.projectLoad(ctx, g)
}

// loadPlayers never returns nil players; a missing record projects with default ratings.
func (m *Manager) loadPlayers(ctx context.Context, g *domain.GameSession) (white, black *domain.Player) {
	load := func(login string) *domain.Player {
		p, err := m.players.FindByLogin(ctx, login)
		if err != nil {
			obslog.L().Warn("player_load_error", zap.String("game_id", g.ID), zap.String("login", login), zap.Error(err))
		}
		if p == nil {
			p = domain.NewPlayer(login, login)
		}
		return p
	}
	return load(g.White), load(g.Black)
}

func (m *Manager) projectLoad(ctx context.Context, g *domain.GameSession) *protocol.GameData {
	white, black := m.loadPlayers(ctx, g)
	return m.project(g, white, black)
}

func (m *Manager) project(g *domain.GameSession, white, black *domain.Player) *protocol.GameData {
	wr, br := white.RatingFor(g.TimeControl), black.RatingFor(g.TimeControl)
	wd, bd := rating.PredictDeltas(wr, br), rating.PredictDeltas(br, wr)
	moves := append([]string{}, g.Moves...)
	return &protocol.GameData{
		GameID: g.ID,

		WhitePlayer:            g.White,
		WhitePlayerDisplayName: white.DisplayName,
		WhiteRating:            wr,
		WhiteWinDelta:          wd.Win,
		WhiteDrawDelta:         wd.Draw,
		WhiteLossDelta:         wd.Loss,

		BlackPlayer:            g.Black,
		BlackPlayerDisplayName: black.DisplayName,
		BlackRating:            br,
		BlackWinDelta:          bd.Win,
		BlackDrawDelta:         bd.Draw,
		BlackLossDelta:         bd.Loss,

		BoardState:    g.Position,
		Moves:         moves,
		IsWhiteTurn:   g.WhiteToMove,
		TimeControl:   string(g.TimeControl),
		WhiteTimeLeft: g.WhiteClock,
		BlackTimeLeft: g.BlackClock,
		State:         string(g.State),
		Result:        string(g.Result),
	}
}
