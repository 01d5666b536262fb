// Package challenge runs direct player-to-player challenges from creation to acceptance,
// decline or expiry.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/keylock"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/store"
)

// DefaultSweepInterval is how often Run expires stale challenges.
const DefaultSweepInterval = time.Minute

var (
	ErrSelfChallenge      = errors.New("cannot challenge yourself")
	ErrChallengerBusy     = errors.New("challenger already has an active game")
	ErrChallengedBusy     = errors.New("challenged player already has an active game")
	ErrNotFound           = errors.New("challenge not found or already processed")
	ErrWrongPlayer        = errors.New("not the challenged player")
	ErrExpired            = errors.New("challenge has expired")
	ErrInvalidTimeControl = errors.New("invalid time control")
)

// Sessions is the slice of the game manager a challenge needs.
type Sessions interface {
	ActiveSession(ctx context.Context, login string) (*domain.GameSession, error)
	Start(ctx context.Context, white, black *domain.Player, tc domain.TimeControl) (*domain.GameSession, error)
}

// Players resolves participants when a challenge turns into a game.
type Players interface {
	FindByLogin(ctx context.Context, login string) (*domain.Player, error)
}

// Searches is the matchmaking pool; both players leave it once a challenge game starts.
type Searches interface {
	Exit(login string) bool
}

type Lifecycle struct {
	store    store.ChallengeStore
	sessions Sessions
	players  Players
	searches Searches
	locks    *keylock.Map
	ttl      time.Duration
	now      func() time.Time
}

type Option func(*Lifecycle)

// WithTTL overrides how long new challenges stay acceptable.
func WithTTL(ttl time.Duration) Option {
	return func(l *Lifecycle) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) {
		if now != nil {
			l.now = now
		}
	}
}

// WithSearches withdraws both players' pending searches when a challenge game starts.
func WithSearches(s Searches) Option {
	return func(l *Lifecycle) { l.searches = s }
}

func New(cs store.ChallengeStore, sessions Sessions, players Players, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		store:    cs,
		sessions: sessions,
		players:  players,
		locks:    keylock.New(),
		ttl:      domain.ChallengeTTL,
		now:      time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func lockKey(id int64) string { return "challenge:" + strconv.FormatInt(id, 10) }

// Create records a PENDING challenge from challenger to challenged.
func (l *Lifecycle) Create(ctx context.Context, challenger, challenged string, tc domain.TimeControl) (*domain.Challenge, error) {
	from, to := domain.NormalizeLogin(challenger), domain.NormalizeLogin(challenged)
	if from == to {
		return nil, ErrSelfChallenge
	}
	if !tc.Valid() {
		return nil, ErrInvalidTimeControl
	}
	active, err := l.sessions.ActiveSession(ctx, from)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrChallengerBusy
	}

	c := domain.NewChallenge(from, to, tc, l.now(), l.ttl)
	if _, err := l.store.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create challenge: %w", err)
	}
	obslog.L().Info("challenge_create",
		zap.Int64("challenge_id", c.ID),
		zap.String("challenger", from),
		zap.String("challenged", to),
		zap.String("time_control", string(tc)),
	)
	return c.Clone(), nil
}

// loadPending returns the PENDING challenge addressed to login.
func (l *Lifecycle) loadPending(ctx context.Context, id int64, login string) (*domain.Challenge, error) {
	c, err := l.store.FindChallenge(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	if !c.Pending() {
		return nil, ErrNotFound
	}
	if c.Challenged != domain.NormalizeLogin(login) {
		return nil, ErrWrongPlayer
	}
	return c, nil
}

// Accept starts a game between challenger (white) and login (black).
func (l *Lifecycle) Accept(ctx context.Context, id int64, login string) (*domain.GameSession, error) {
	unlock := l.locks.Lock(lockKey(id))
	defer unlock()

	c, err := l.loadPending(ctx, id, login)
	if err != nil {
		return nil, err
	}
	if c.Expired(l.now()) {
		if err := l.transition(ctx, c, domain.ChallengeExpired); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}

	if busy, err := l.sessions.ActiveSession(ctx, c.Challenger); err != nil {
		return nil, err
	} else if busy != nil {
		return nil, ErrChallengerBusy
	}
	if busy, err := l.sessions.ActiveSession(ctx, c.Challenged); err != nil {
		return nil, err
	} else if busy != nil {
		return nil, ErrChallengedBusy
	}

	white, err := l.player(ctx, c.Challenger)
	if err != nil {
		return nil, err
	}
	black, err := l.player(ctx, c.Challenged)
	if err != nil {
		return nil, err
	}

	if err := l.transition(ctx, c, domain.ChallengeAccepted); err != nil {
		return nil, err
	}
	g, err := l.sessions.Start(ctx, white, black, c.TimeControl)
	if err != nil {
		// hand the challenge back so it can be retried or expire normally
		if rerr := l.store.UpdateStatus(ctx, c.ID, domain.ChallengeAccepted, domain.ChallengePending); rerr != nil {
			obslog.L().Error("challenge_revert_error", zap.Int64("challenge_id", c.ID), zap.Error(rerr))
		}
		return nil, fmt.Errorf("start challenge game: %w", err)
	}
	if l.searches != nil {
		l.searches.Exit(c.Challenger)
		l.searches.Exit(c.Challenged)
	}
	obslog.L().Info("challenge_accept", zap.Int64("challenge_id", c.ID), zap.String("game_id", g.ID))
	return g, nil
}

// Decline marks the challenge DECLINED and returns it for notification.
func (l *Lifecycle) Decline(ctx context.Context, id int64, login string) (*domain.Challenge, error) {
	unlock := l.locks.Lock(lockKey(id))
	defer unlock()

	c, err := l.loadPending(ctx, id, login)
	if err != nil {
		return nil, err
	}
	if err := l.transition(ctx, c, domain.ChallengeDeclined); err != nil {
		return nil, err
	}
	obslog.L().Info("challenge_decline", zap.Int64("challenge_id", c.ID), zap.String("challenged", c.Challenged))
	return c, nil
}

func (l *Lifecycle) transition(ctx context.Context, c *domain.Challenge, to domain.ChallengeStatus) error {
	err := l.store.UpdateStatus(ctx, c.ID, domain.ChallengePending, to)
	if errors.Is(err, store.ErrStatusConflict) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update challenge status: %w", err)
	}
	c.Status = to
	return nil
}

func (l *Lifecycle) player(ctx context.Context, login string) (*domain.Player, error) {
	p, err := l.players.FindByLogin(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", login, err)
	}
	if p == nil {
		return nil, fmt.Errorf("load player %s: %w", login, store.ErrInvalidRecord)
	}
	return p, nil
}

// SweepExpired moves every overdue PENDING challenge to EXPIRED and returns the count.
func (l *Lifecycle) SweepExpired(ctx context.Context) (int, error) {
	expired, err := l.store.FindExpired(ctx, l.now())
	if err != nil {
		return 0, fmt.Errorf("find expired challenges: %w", err)
	}
	n := 0
	for _, c := range expired {
		unlock := l.locks.Lock(lockKey(c.ID))
		err := l.store.UpdateStatus(ctx, c.ID, domain.ChallengePending, domain.ChallengeExpired)
		unlock()
		switch {
		case err == nil:
			n++
		case errors.Is(err, store.ErrStatusConflict):
			// resolved while the sweep was running
		default:
			return n, fmt.Errorf("expire challenge %d: %w", c.ID, err)
		}
	}
	if n > 0 {
		obslog.L().Info("challenge_sweep", zap.Int("expired", n))
	}
	return n, nil
}

// Run sweeps every interval until ctx is done.
func (l *Lifecycle) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := l.SweepExpired(ctx); err != nil {
				obslog.L().Warn("challenge_sweep_error", zap.Error(err))
			}
		}
	}
}

// PendingFor lists PENDING challenges addressed to login.
func (l *Lifecycle) PendingFor(ctx context.Context, login string) ([]*domain.Challenge, error) {
	return l.store.FindPendingFor(ctx, domain.NormalizeLogin(login))
}

// PendingBy lists PENDING challenges sent by login.
func (l *Lifecycle) PendingBy(ctx context.Context, login string) ([]*domain.Challenge, error) {
	return l.store.FindPendingBy(ctx, domain.NormalizeLogin(login))
}
