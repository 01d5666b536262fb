package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/cheese-arena/internal/domain"
)

type fakeSessions struct {
	mu       sync.Mutex
	active   map[string]*domain.GameSession
	started  []*domain.GameSession
	failNext bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{active: make(map[string]*domain.GameSession)}
}

func (f *fakeSessions) ActiveSession(ctx context.Context, login string) (*domain.GameSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[login], nil
}

func (f *fakeSessions) Start(ctx context.Context, white, black *domain.Player, tc domain.TimeControl) (*domain.GameSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return nil, errors.New("store down")
	}
	g := domain.NewGameSession(fmt.Sprintf("g%d", len(f.started)+1), white.Login, black.Login, tc, white.CreatedAt)
	f.started = append(f.started, g)
	f.active[g.White] = g
	f.active[g.Black] = g
	return g, nil
}

func player(login string, blitz int) *domain.Player {
	p := domain.NewPlayer(login, login)
	p.Blitz.Rating = blitz
	return p
}

func TestEnter_PairsWithinWindow(t *testing.T) {
	fs := newFakeSessions()
	r := New(fs)
	ctx := context.Background()

	m, err := r.Enter(ctx, player("alice", 1200), domain.Blitz)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.True(t, r.IsSearching("alice"))

	m, err = r.Enter(ctx, player("bob", 1400), domain.Blitz)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "bob", m.White)
	assert.Equal(t, "alice", m.Black)
	assert.Equal(t, 0, r.Len())
}

func TestEnter_DoesNotPairOutsideWindowOrTimeControl(t *testing.T) {
	fs := newFakeSessions()
	r := New(fs)
	ctx := context.Background()

	_, err := r.Enter(ctx, player("alice", 1200), domain.Blitz)
	require.NoError(t, err)
	m, err := r.Enter(ctx, player("bob", 1401), domain.Blitz)
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = r.Enter(ctx, player("carol", 1200), domain.Bullet)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Equal(t, 3, r.Len())
}

func TestEnter_RejectsPlayerInGame(t *testing.T) {
	fs := newFakeSessions()
	fs.active["alice"] = &domain.GameSession{ID: "x", State: domain.StateInProgress}
	r := New(fs)

	_, err := r.Enter(context.Background(), player("alice", 1200), domain.Blitz)
	assert.ErrorIs(t, err, ErrAlreadyInGame)
	assert.False(t, r.IsSearching("alice"))

	_, err = r.Enter(context.Background(), player("bob", 1200), domain.TimeControl("CORRESPONDENCE"))
	assert.ErrorIs(t, err, ErrInvalidTimeControl)
}

func TestEnter_SkipsQueuedPlayerWhoStartedAnotherGame(t *testing.T) {
	fs := newFakeSessions()
	r := New(fs)
	ctx := context.Background()

	m, err := r.Enter(ctx, player("alice", 1200), domain.Blitz)
	require.NoError(t, err)
	require.Nil(t, m)
	fs.mu.Lock()
	fs.active["alice"] = &domain.GameSession{ID: "elsewhere", State: domain.StateInProgress}
	fs.mu.Unlock()

	m, err = r.Enter(ctx, player("dave", 1200), domain.Blitz)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.False(t, r.IsSearching("alice"))
	assert.True(t, r.IsSearching("dave"))

	m, err = r.Enter(ctx, player("carol", 1200), domain.Blitz)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "carol", m.White)
	assert.Equal(t, "dave", m.Black)
	assert.Len(t, fs.started, 1)
	assert.Equal(t, 0, r.Len())
}

func TestEnter_OverwritesOwnRequest(t *testing.T) {
	r := New(newFakeSessions())
	ctx := context.Background()
	_, _ = r.Enter(ctx, player("alice", 1200), domain.Blitz)
	m, err := r.Enter(ctx, player("alice", 1200), domain.Rapid)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Equal(t, 1, r.Len())
}

func TestEnter_FailedStartRequeuesOpponent(t *testing.T) {
	fs := newFakeSessions()
	r := New(fs)
	ctx := context.Background()
	_, _ = r.Enter(ctx, player("alice", 1200), domain.Blitz)

	fs.failNext = true
	_, err := r.Enter(ctx, player("bob", 1200), domain.Blitz)
	require.Error(t, err)
	assert.True(t, r.IsSearching("alice"))
	assert.False(t, r.IsSearching("bob"))
}

func TestExit(t *testing.T) {
	r := New(newFakeSessions())
	_, _ = r.Enter(context.Background(), player("alice", 1200), domain.Blitz)
	assert.True(t, r.Exit("Alice"))
	assert.False(t, r.Exit("alice"))
	assert.False(t, r.IsSearching("alice"))
}

func TestEnter_ConcurrentPlayersPairedOnce(t *testing.T) {
	fs := newFakeSessions()
	r := New(fs)
	ctx := context.Background()

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = r.Enter(ctx, player(fmt.Sprintf("p%02d", i), 1200), domain.Blitz)
		}(i)
	}
	wg.Wait()

	seen := map[string]int{}
	for _, g := range fs.started {
		seen[g.White]++
		seen[g.Black]++
	}
	for login, c := range seen {
		if c != 1 {
			t.Fatalf("%s paired %d times", login, c)
		}
	}
	assert.Equal(t, n, len(seen)+r.Len())
}
