package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/park285/cheese-arena/internal/domain"
)

// Memory keeps players, games and challenges in process. Every read returns a copy.
type Memory struct {
	mu sync.RWMutex

	players map[string]*domain.Player

	games  map[string]*domain.GameSession
	active map[string]string // login -> IN_PROGRESS game id

	nextChallenge int64
	challenges    map[int64]*domain.Challenge
}

var (
	_ PlayerStore    = (*Memory)(nil)
	_ GameStore      = (*Memory)(nil)
	_ ChallengeStore = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		players:    make(map[string]*domain.Player),
		games:      make(map[string]*domain.GameSession),
		active:     make(map[string]string),
		challenges: make(map[int64]*domain.Challenge),
	}
}

// Players

func (m *Memory) FindByLogin(ctx context.Context, login string) (*domain.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.players[domain.NormalizeLogin(login)].Clone(), nil
}

func (m *Memory) Ensure(ctx context.Context, login, displayName string) (*domain.Player, error) {
	key := domain.NormalizeLogin(login)
	if key == "" {
		return nil, ErrInvalidRecord
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[key]; ok {
		return p.Clone(), nil
	}
	p := domain.NewPlayer(key, displayName)
	m.players[key] = p
	return p.Clone(), nil
}

func (m *Memory) SetOnline(ctx context.Context, login string, online bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[domain.NormalizeLogin(login)]
	if !ok {
		return nil
	}
	p.Online = online
	p.LastSeen = at
	return nil
}

func (m *Memory) SetDisplayName(ctx context.Context, login, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.players[domain.NormalizeLogin(login)]; ok {
		p.DisplayName = displayName
	}
	return nil
}

func (m *Memory) ApplyResult(ctx context.Context, login string, tc domain.TimeControl, rating int, outcome domain.PlayerOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[domain.NormalizeLogin(login)]
	if !ok {
		return ErrInvalidRecord
	}
	p.ApplyResult(tc, rating, outcome)
	return nil
}

func (m *Memory) ListOnline(ctx context.Context, exceptLogin string) ([]*domain.Player, error) {
	except := domain.NormalizeLogin(exceptLogin)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*domain.Player{}
	for login, p := range m.players {
		if p.Online && login != except {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Login < out[j].Login })
	return out, nil
}

// Games

func (m *Memory) Save(ctx context.Context, g *domain.GameSession) error {
	if g == nil || g.ID == "" {
		return ErrInvalidRecord
	}
	cp := g.Clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.ID] = cp
	for _, login := range []string{cp.White, cp.Black} {
		if cp.State == domain.StateInProgress {
			m.active[login] = cp.ID
		} else if m.active[login] == cp.ID {
			delete(m.active, login)
		}
	}
	return nil
}

func (m *Memory) FindByID(ctx context.Context, id string) (*domain.GameSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	cp.Moves = nil
	return &cp, nil
}

func (m *Memory) FindByIDWithMoves(ctx context.Context, id string) (*domain.GameSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.games[id].Clone(), nil
}

func (m *Memory) FindActiveByPlayer(ctx context.Context, login string) (*domain.GameSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.active[domain.NormalizeLogin(login)]
	if !ok {
		return nil, nil
	}
	return m.games[id].Clone(), nil
}

func (m *Memory) FindByStates(ctx context.Context, states ...domain.GameState) ([]*domain.GameSession, error) {
	want := make(map[domain.GameState]bool, len(states))
	for _, s := range states {
		want[s] = true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*domain.GameSession{}
	for _, g := range m.games {
		if want[g.State] {
			out = append(out, g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Challenges

func (m *Memory) Create(ctx context.Context, c *domain.Challenge) (int64, error) {
	if c == nil {
		return 0, ErrInvalidRecord
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextChallenge++
	c.ID = m.nextChallenge
	m.challenges[c.ID] = c.Clone()
	return c.ID, nil
}

func (m *Memory) FindChallenge(ctx context.Context, id int64) (*domain.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.challenges[id].Clone(), nil
}

func (m *Memory) UpdateStatus(ctx context.Context, id int64, from, to domain.ChallengeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[id]
	if !ok || c.Status != from {
		return ErrStatusConflict
	}
	c.Status = to
	return nil
}

func (m *Memory) FindPendingFor(ctx context.Context, challenged string) ([]*domain.Challenge, error) {
	login := domain.NormalizeLogin(challenged)
	return m.filterChallenges(func(c *domain.Challenge) bool {
		return c.Pending() && c.Challenged == login
	}), nil
}

func (m *Memory) FindPendingBy(ctx context.Context, challenger string) ([]*domain.Challenge, error) {
	login := domain.NormalizeLogin(challenger)
	return m.filterChallenges(func(c *domain.Challenge) bool {
		return c.Pending() && c.Challenger == login
	}), nil
}

func (m *Memory) FindExpired(ctx context.Context, now time.Time) ([]*domain.Challenge, error) {
	return m.filterChallenges(func(c *domain.Challenge) bool {
		return c.Pending() && c.Expired(now)
	}), nil
}

func (m *Memory) filterChallenges(keep func(*domain.Challenge) bool) []*domain.Challenge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*domain.Challenge{}
	for _, c := range m.challenges {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
