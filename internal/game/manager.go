// Package game owns the session state machine: moves, clocks, end-of-game detection and
// settlement.
package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/keylock"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/rating"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/store"
	"github.com/park285/cheese-arena/internal/timeout"
	"github.com/park285/cheese-arena/pkg/protocol"
)

// timeoutCallTimeout bounds the store work done from a timer goroutine.
const timeoutCallTimeout = 10 * time.Second

type Manager struct {
	games   store.GameStore
	players store.PlayerStore
	rules   rules.Engine
	timers  *timeout.Scheduler
	locks   *keylock.Map

	nmu      sync.RWMutex
	notifier Notifier

	now   func() time.Time
	newID func() string
}

type Option func(*Manager)

// WithClock overrides the wall clock used for move timing.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithIDGenerator(f func() string) Option {
	return func(m *Manager) {
		if f != nil {
			m.newID = f
		}
	}
}

func NewManager(games store.GameStore, players store.PlayerStore, engine rules.Engine, opts ...Option) *Manager {
	m := &Manager{
		games:    games,
		players:  players,
		rules:    engine,
		locks:    keylock.New(),
		notifier: nopNotifier{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(m)
	}
	m.timers = timeout.New(m.onTimeout)
	return m
}

// AttachNotifier wires the event sink. Called once at startup, after the router exists.
func (m *Manager) AttachNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	m.nmu.Lock()
	m.notifier = n
	m.nmu.Unlock()
}

func (m *Manager) notify() Notifier {
	m.nmu.RLock()
	defer m.nmu.RUnlock()
	return m.notifier
}

// Timers exposes the scheduler for shutdown and inspection.
func (m *Manager) Timers() *timeout.Scheduler { return m.timers }

// Close cancels all pending timers.
func (m *Manager) Close() { m.timers.Stop() }

// ActiveSession returns the player's IN_PROGRESS session, or nil.
func (m *Manager) ActiveSession(ctx context.Context, login string) (*domain.GameSession, error) {
	g, err := m.games.FindActiveByPlayer(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("find active game: %w", err)
	}
	if !g.InProgress() {
		return nil, nil
	}
	return g, nil
}

// Start creates an IN_PROGRESS session, arms white's clock and announces the game.
func (m *Manager) Start(ctx context.Context, white, black *domain.Player, tc domain.TimeControl) (*domain.GameSession, error) {
	if white == nil || black == nil || white.Login == black.Login {
		return nil, fmt.Errorf("start game: invalid participants")
	}
	if !tc.Valid() {
		return nil, fmt.Errorf("start game: invalid time control %q", tc)
	}
	g := domain.NewGameSession(m.newID(), white.Login, black.Login, tc, m.now())

	unlock := m.locks.Lock(g.ID)
	defer unlock()

	if err := m.games.Save(ctx, g); err != nil {
		return nil, fmt.Errorf("save new game: %w", err)
	}
	m.timers.Arm(g)
	obslog.L().Info("game_start",
		zap.String("game_id", g.ID),
		zap.String("white", g.White),
		zap.String("black", g.Black),
		zap.String("time_control", string(tc)),
	)
	m.notify().GameStarted(m.project(g, white, black))
	return g.Clone(), nil
}

// ApplyMove validates and applies one move token for login.
func (m *Manager) ApplyMove(ctx context.Context, sessionID, login, token string) (MoveResult, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	g, err := m.games.FindByIDWithMoves(ctx, sessionID)
	if err != nil {
		return MoveError, fmt.Errorf("load game: %w", err)
	}
	if g == nil {
		return MoveGameNotFound, ErrGameNotFound
	}
	if !g.InProgress() {
		return MoveGameNotStarted, ErrGameNotStarted
	}
	mover, ok := g.ColorOf(login)
	if !ok || mover != g.SideToMove() {
		return MoveNotYourTurn, ErrNotYourTurn
	}
	uci, ok := normalizeToken(token)
	if !ok {
		return MoveInvalid, ErrInvalidMove
	}
	verdict, err := m.rules.Apply(g.Position, uci)
	if err != nil {
		return MoveError, fmt.Errorf("rules engine: %w", err)
	}
	if !verdict.Legal {
		return MoveInvalid, ErrInvalidMove
	}

	now := m.now()
	// each side's first move is free
	if len(g.Moves) >= 2 && !g.LastMoveAt.IsZero() {
		g.Debit(mover, now.Sub(g.LastMoveAt))
	}
	g.Moves = append(g.Moves, uci)
	g.WhiteToMove = !g.WhiteToMove
	g.Position = verdict.Position
	g.LastMoveAt = now

	var result domain.GameResult
	switch {
	case verdict.Checkmate:
		result = domain.ResultFor(domain.WinFor(mover), domain.ReasonCheckmate)
	case verdict.Stalemate, verdict.Draw:
		result = domain.ResultDraw
	}

	obslog.L().Info("game_move",
		zap.String("game_id", g.ID),
		zap.String("login", domain.NormalizeLogin(login)),
		zap.String("move", uci),
		zap.Int("ply", len(g.Moves)),
		zap.Int64("white_ms", g.WhiteClock),
		zap.Int64("black_ms", g.BlackClock),
	)

	if result == domain.ResultNone {
		if err := m.games.Save(ctx, g); err != nil {
			return MoveError, fmt.Errorf("save game: %w", err)
		}
		m.timers.Arm(g)
		m.notify().GameUpdated(m.projectLoad(ctx, g))
		return MoveSuccess, nil
	}

	ended, err := m.settle(ctx, g, result)
	if err != nil {
		return MoveError, err
	}
	m.notify().GameUpdated(m.projectLoad(ctx, g))
	m.notify().GameEnded(ended)
	return MoveGameEnded, nil
}

// Resign ends the game in the opponent's favour. It reports whether the game ended.
func (m *Manager) Resign(ctx context.Context, sessionID, login string) (bool, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	g, err := m.games.FindByIDWithMoves(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("load game: %w", err)
	}
	if !g.InProgress() {
		return false, nil
	}
	c, ok := g.ColorOf(login)
	if !ok {
		return false, nil
	}
	ended, err := m.settle(ctx, g, domain.ResultFor(domain.WinFor(c.Opposite()), domain.ReasonResignation))
	if err != nil {
		return false, err
	}
	m.notify().GameEnded(ended)
	return true, nil
}

// HandleTimeout ends the game if login is still the side to move. Stale firings are no-ops.
func (m *Manager) HandleTimeout(ctx context.Context, sessionID, login string) (bool, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()
	return m.timeoutLocked(ctx, sessionID, login)
}

// expire is the timer path. The firing must still be the session's current timer once the
// lock is held; moves that landed between the firing and the lock re-armed it.
func (m *Manager) expire(ctx context.Context, f timeout.Firing) (bool, error) {
	unlock := m.locks.Lock(f.SessionID)
	defer unlock()
	if !m.timers.Claim(f) {
		obslog.L().Debug("timeout_stale", zap.String("game_id", f.SessionID), zap.String("login", f.Login), zap.Uint64("gen", f.Gen))
		return false, nil
	}
	return m.timeoutLocked(ctx, f.SessionID, f.Login)
}

func (m *Manager) timeoutLocked(ctx context.Context, sessionID, login string) (bool, error) {
	g, err := m.games.FindByIDWithMoves(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("load game: %w", err)
	}
	if !g.InProgress() {
		return false, nil
	}
	c, ok := g.ColorOf(login)
	if !ok || c != g.SideToMove() {
		obslog.L().Debug("timeout_stale", zap.String("game_id", sessionID), zap.String("login", login))
		return false, nil
	}
	if g.WhiteToMove {
		g.WhiteClock = 0
	} else {
		g.BlackClock = 0
	}
	ended, err := m.settle(ctx, g, domain.ResultFor(domain.WinFor(c.Opposite()), domain.ReasonTimeout))
	if err != nil {
		return false, err
	}
	m.notify().GameEnded(ended)
	return true, nil
}

func (m *Manager) onTimeout(f timeout.Firing) {
	ctx, cancel := context.WithTimeout(context.Background(), timeoutCallTimeout)
	defer cancel()
	if _, err := m.expire(ctx, f); err != nil {
		obslog.L().Error("timeout_handle_error", zap.String("game_id", f.SessionID), zap.Error(err))
	}
}

// settle finalizes g. The caller holds the session lock and has checked g is IN_PROGRESS,
// so this runs once per session.
func (m *Manager) settle(ctx context.Context, g *domain.GameSession, result domain.GameResult) (*protocol.GameEnded, error) {
	m.timers.Cancel(g.ID)
	g.End(result, m.now())
	if err := m.games.Save(ctx, g); err != nil {
		return nil, fmt.Errorf("save ended game: %w", err)
	}

	white, black := m.loadPlayers(ctx, g)
	oldW, oldB := white.RatingFor(g.TimeControl), black.RatingFor(g.TimeControl)
	newW, newB := rating.Update(oldW, oldB, result.Outcome())
	wo, bo := playerOutcomes(result.Outcome())
	if err := m.players.ApplyResult(ctx, g.White, g.TimeControl, newW, wo); err != nil {
		obslog.L().Error("rating_apply_error", zap.String("game_id", g.ID), zap.String("login", g.White), zap.Error(err))
	}
	if err := m.players.ApplyResult(ctx, g.Black, g.TimeControl, newB, bo); err != nil {
		obslog.L().Error("rating_apply_error", zap.String("game_id", g.ID), zap.String("login", g.Black), zap.Error(err))
	}

	winner := g.Winner
	if winner == "" {
		winner = protocol.WinnerDraw
	}
	obslog.L().Info("game_end",
		zap.String("game_id", g.ID),
		zap.String("result", string(result)),
		zap.String("reason", string(result.Reason())),
		zap.String("winner", winner),
		zap.Int("white_rating", newW),
		zap.Int("black_rating", newB),
	)
	return &protocol.GameEnded{
		GameID:      g.ID,
		Winner:      winner,
		Result:      string(result),
		WhiteRating: newW,
		BlackRating: newB,
		White:       g.White,
		Black:       g.Black,
	}, nil
}

func playerOutcomes(o domain.Outcome) (white, black domain.PlayerOutcome) {
	switch o {
	case domain.OutcomeWhiteWin:
		return domain.PlayerWin, domain.PlayerLoss
	case domain.OutcomeBlackWin:
		return domain.PlayerLoss, domain.PlayerWin
	default:
		return domain.PlayerDraw, domain.PlayerDraw
	}
}

// Recover ends every session left WAITING or IN_PROGRESS by a previous process.
// The result stays unset and no ratings change.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	stale, err := m.games.FindByStates(ctx, domain.StateWaiting, domain.StateInProgress)
	if err != nil {
		return 0, fmt.Errorf("find unfinished games: %w", err)
	}
	n := 0
	for _, s := range stale {
		unlock := m.locks.Lock(s.ID)
		m.timers.Cancel(s.ID)
		g, err := m.games.FindByIDWithMoves(ctx, s.ID)
		if err == nil && g != nil && g.State != domain.StateEnded {
			g.State = domain.StateEnded
			g.EndedAt = m.now()
			if err = m.games.Save(ctx, g); err == nil {
				n++
			}
		}
		unlock()
		if err != nil {
			return n, fmt.Errorf("end game %s: %w", s.ID, err)
		}
	}
	obslog.L().Info("game_recover", zap.Int("ended", n))
	return n, nil
}
