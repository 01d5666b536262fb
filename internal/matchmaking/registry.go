// Package matchmaking pairs players searching for a game in the same time control.
package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/obslog"
)

// DefaultWindow is the widest rating gap two requests may pair across.
const DefaultWindow = 200

var (
	ErrAlreadyInGame      = errors.New("player already has an active game")
	ErrInvalidTimeControl = errors.New("invalid time control")
)

// Sessions is the slice of the game manager the registry needs.
type Sessions interface {
	ActiveSession(ctx context.Context, login string) (*domain.GameSession, error)
	Start(ctx context.Context, white, black *domain.Player, tc domain.TimeControl) (*domain.GameSession, error)
}

// Request is one outstanding search.
type Request struct {
	Login       string
	TimeControl domain.TimeControl
	Rating      int
	EnqueuedAt  time.Time

	player *domain.Player
}

// Match is a completed pairing and the session it started.
type Match struct {
	White   string
	Black   string
	Session *domain.GameSession
}

type Registry struct {
	sessions Sessions
	window   int
	now      func() time.Time

	mu       sync.Mutex
	requests map[string]*Request
}

type Option func(*Registry)

func WithWindow(w int) Option {
	return func(r *Registry) {
		if w >= 0 {
			r.window = w
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func New(sessions Sessions, opts ...Option) *Registry {
	r := &Registry{
		sessions: sessions,
		window:   DefaultWindow,
		now:      time.Now,
		requests: make(map[string]*Request),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Enter records the player's search and tries to pair it at once. A nil Match with a nil
// error means the request is waiting.
func (r *Registry) Enter(ctx context.Context, player *domain.Player, tc domain.TimeControl) (*Match, error) {
	if player == nil || player.Login == "" {
		return nil, fmt.Errorf("enter queue: missing player")
	}
	if !tc.Valid() {
		return nil, ErrInvalidTimeControl
	}
	active, err := r.sessions.ActiveSession(ctx, player.Login)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrAlreadyInGame
	}

	req := &Request{
		Login:       domain.NormalizeLogin(player.Login),
		TimeControl: tc,
		Rating:      player.RatingFor(tc),
		EnqueuedAt:  r.now(),
		player:      player.Clone(),
	}

	r.mu.Lock()
	r.requests[req.Login] = req
	r.mu.Unlock()

	for {
		opp, ok := r.claim(req)
		if !ok {
			// exited or replaced by a newer search while we were pairing
			return nil, nil
		}
		if opp == nil {
			obslog.L().Info("search_enqueue",
				zap.String("login", req.Login),
				zap.String("time_control", string(tc)),
				zap.Int("rating", req.Rating),
			)
			return nil, nil
		}

		// a queued player may have started a game elsewhere, e.g. by accepting a challenge
		busy, err := r.sessions.ActiveSession(ctx, opp.Login)
		if err != nil {
			r.requeue(opp)
			r.requeue(req)
			return nil, err
		}
		if busy != nil {
			obslog.L().Info("search_drop_busy", zap.String("login", opp.Login), zap.String("game_id", busy.ID))
			r.requeue(req)
			continue
		}

		g, err := r.sessions.Start(ctx, req.player, opp.player, tc)
		if err != nil {
			r.requeue(opp)
			return nil, fmt.Errorf("start matched game: %w", err)
		}
		obslog.L().Info("search_match",
			zap.String("game_id", g.ID),
			zap.String("white", req.Login),
			zap.String("black", opp.Login),
			zap.Int("rating_gap", abs(req.Rating-opp.Rating)),
		)
		return &Match{White: g.White, Black: g.Black, Session: g}, nil
	}
}

// claim removes req and a compatible opponent from the pool in one step. ok is false when
// req is no longer the player's current request.
func (r *Registry) claim(req *Request) (opp *Request, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.requests[req.Login] != req {
		return nil, false
	}
	opp = r.findOpponentLocked(req)
	if opp != nil {
		delete(r.requests, req.Login)
		delete(r.requests, opp.Login)
	}
	return opp, true
}

// findOpponentLocked returns any other request in the same time control within the window.
func (r *Registry) findOpponentLocked(req *Request) *Request {
	for login, other := range r.requests {
		if login == req.Login || other.TimeControl != req.TimeControl {
			continue
		}
		if abs(other.Rating-req.Rating) <= r.window {
			return other
		}
	}
	return nil
}

// requeue puts back the opponent of a failed start unless it searched again meanwhile.
func (r *Registry) requeue(req *Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[req.Login]; !ok {
		r.requests[req.Login] = req
	}
}

// Exit removes the player's request. Absence is not an error.
func (r *Registry) Exit(login string) bool {
	login = domain.NormalizeLogin(login)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[login]; !ok {
		return false
	}
	delete(r.requests, login)
	obslog.L().Info("search_exit", zap.String("login", login))
	return true
}

func (r *Registry) IsSearching(login string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.requests[domain.NormalizeLogin(login)]
	return ok
}

// Len returns the number of outstanding requests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
