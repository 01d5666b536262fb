// Package timeout keeps at most one pending clock-expiry timer per game session.
package timeout

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/obslog"
)

// Firing identifies one expired timer. Gen lets the receiver Claim it once it holds the
// session lock, so a firing overtaken by later moves is recognised as stale.
type Firing struct {
	SessionID string
	Login     string
	Gen       uint64
}

// Func is called when the side to move runs out of time.
type Func func(f Firing)

type timer struct {
	t   *time.Timer
	gen uint64
}

type Scheduler struct {
	mu     sync.Mutex
	timers map[string]timer
	gen    uint64
	fire   Func
}

func New(fire Func) *Scheduler {
	return &Scheduler{timers: make(map[string]timer), fire: fire}
}

// Arm replaces any pending timer of the session with one for the side to move.
// A non-positive remaining clock fires on a new goroutine with zero delay.
func (s *Scheduler) Arm(g *domain.GameSession) {
	if g == nil || !g.InProgress() {
		return
	}
	sessionID := g.ID
	login := g.PlayerToMove()
	delay := time.Duration(g.Clock(g.SideToMove())) * time.Millisecond
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.timers[sessionID]; ok {
		prev.t.Stop()
	}
	s.gen++
	gen := s.gen
	t := time.AfterFunc(delay, func() { s.expire(Firing{SessionID: sessionID, Login: login, Gen: gen}) })
	s.timers[sessionID] = timer{t: t, gen: gen}
	obslog.L().Debug("timeout_armed",
		zap.String("game_id", sessionID),
		zap.String("login", login),
		zap.Duration("delay", delay),
	)
}

// Cancel stops and forgets the session's timer. Safe to call repeatedly.
func (s *Scheduler) Cancel(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.timers[sessionID]; ok {
		prev.t.Stop()
		delete(s.timers, sessionID)
	}
}

func (s *Scheduler) Pending(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[sessionID]
	return ok
}

// Len returns the number of pending timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, tm := range s.timers {
		tm.t.Stop()
		delete(s.timers, id)
	}
}

// expire leaves the entry in place; the receiver removes it with Claim.
func (s *Scheduler) expire(f Firing) {
	s.mu.Lock()
	cur, ok := s.timers[f.SessionID]
	s.mu.Unlock()
	if !ok || cur.gen != f.Gen {
		return
	}

	obslog.L().Info("timeout_fired", zap.String("game_id", f.SessionID), zap.String("login", f.Login))
	if s.fire != nil {
		s.fire(f)
	}
}

// Claim forgets the timer of f and reports true only if f is still the session's current
// timer. Once the session is re-armed or cancelled, older firings fail to claim.
func (s *Scheduler) Claim(f Firing) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.timers[f.SessionID]
	if !ok || cur.gen != f.Gen {
		return false
	}
	delete(s.timers, f.SessionID)
	return true
}

// Generation returns the generation of the session's pending timer.
func (s *Scheduler) Generation(sessionID string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.timers[sessionID]
	return cur.gen, ok
}
