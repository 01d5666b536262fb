package challenge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/game"
	"github.com/park285/cheese-arena/internal/matchmaking"
	"github.com/park285/cheese-arena/internal/rules"
	"github.com/park285/cheese-arena/internal/store"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type env struct {
	lc    *Lifecycle
	mgr   *game.Manager
	reg   *matchmaking.Registry
	mem   *store.Memory
	clock *testClock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mem := store.NewMemory()
	clock := &testClock{now: time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)}
	mgr := game.NewManager(mem, mem, rules.New(), game.WithClock(clock.Now))
	t.Cleanup(mgr.Close)
	for _, login := range []string{"alice", "bob", "carol"} {
		_, err := mem.Ensure(context.Background(), login, login)
		require.NoError(t, err)
	}
	reg := matchmaking.New(mgr)
	lc := New(mem, mgr, mem, WithClock(clock.Now), WithSearches(reg))
	return &env{lc: lc, mgr: mgr, reg: reg, mem: mem, clock: clock}
}

func TestCreate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.lc.Create(ctx, "alice", "ALICE", domain.Blitz)
	assert.ErrorIs(t, err, ErrSelfChallenge)

	c, err := e.lc.Create(ctx, "alice", "bob", domain.Blitz)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, domain.ChallengePending, c.Status)
	assert.Equal(t, 2*time.Minute, c.ExpiresAt.Sub(c.CreatedAt))

	pending, err := e.lc.PendingFor(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	sent, err := e.lc.PendingBy(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, sent, 1)
}

func TestCreate_ChallengerBusy(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice, _ := e.mem.FindByLogin(ctx, "alice")
	carol, _ := e.mem.FindByLogin(ctx, "carol")
	_, err := e.mgr.Start(ctx, alice, carol, domain.Rapid)
	require.NoError(t, err)

	_, err = e.lc.Create(ctx, "alice", "bob", domain.Blitz)
	assert.ErrorIs(t, err, ErrChallengerBusy)
}

func TestAccept_StartsGameWithChallengerWhite(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c, err := e.lc.Create(ctx, "alice", "bob", domain.Bullet)
	require.NoError(t, err)

	_, err = e.lc.Accept(ctx, c.ID, "carol")
	assert.ErrorIs(t, err, ErrWrongPlayer)

	g, err := e.lc.Accept(ctx, c.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", g.White)
	assert.Equal(t, "bob", g.Black)
	assert.Equal(t, int64(60_000), g.WhiteClock)
	assert.True(t, e.mgr.Timers().Pending(g.ID))

	stored, _ := e.mem.FindChallenge(ctx, c.ID)
	assert.Equal(t, domain.ChallengeAccepted, stored.Status)

	_, err = e.lc.Accept(ctx, c.ID, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.lc.Accept(ctx, 999, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccept_WithdrawsPendingSearches(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	player := func(login string) *domain.Player {
		p, err := e.mem.FindByLogin(ctx, login)
		require.NoError(t, err)
		return p
	}

	m, err := e.reg.Enter(ctx, player("alice"), domain.Blitz)
	require.NoError(t, err)
	require.Nil(t, m)

	c, err := e.lc.Create(ctx, "bob", "alice", domain.Blitz)
	require.NoError(t, err)
	g, err := e.lc.Accept(ctx, c.ID, "alice")
	require.NoError(t, err)
	assert.False(t, e.reg.IsSearching("alice"))

	m, err = e.reg.Enter(ctx, player("carol"), domain.Blitz)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.True(t, e.reg.IsSearching("carol"))

	active, err := e.mgr.ActiveSession(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, g.ID, active.ID)
	inProgress, err := e.mem.FindByStates(ctx, domain.StateInProgress)
	require.NoError(t, err)
	assert.Len(t, inProgress, 1)
}

func TestAccept_AfterExpiry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c, err := e.lc.Create(ctx, "alice", "bob", domain.Blitz)
	require.NoError(t, err)

	e.clock.Advance(2*time.Minute + time.Second)
	_, err = e.lc.Accept(ctx, c.ID, "bob")
	assert.ErrorIs(t, err, ErrExpired)

	stored, _ := e.mem.FindChallenge(ctx, c.ID)
	assert.Equal(t, domain.ChallengeExpired, stored.Status)
	active, _ := e.mgr.ActiveSession(ctx, "bob")
	assert.Nil(t, active)
}

func TestAccept_ChallengerStartedAnotherGame(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c, err := e.lc.Create(ctx, "alice", "bob", domain.Blitz)
	require.NoError(t, err)

	alice, _ := e.mem.FindByLogin(ctx, "alice")
	carol, _ := e.mem.FindByLogin(ctx, "carol")
	_, err = e.mgr.Start(ctx, alice, carol, domain.Blitz)
	require.NoError(t, err)

	_, err = e.lc.Accept(ctx, c.ID, "bob")
	assert.ErrorIs(t, err, ErrChallengerBusy)
	stored, _ := e.mem.FindChallenge(ctx, c.ID)
	assert.Equal(t, domain.ChallengePending, stored.Status)
}

func TestDecline(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c, err := e.lc.Create(ctx, "alice", "bob", domain.Blitz)
	require.NoError(t, err)

	_, err = e.lc.Decline(ctx, c.ID, "alice")
	assert.ErrorIs(t, err, ErrWrongPlayer)

	got, err := e.lc.Decline(ctx, c.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.ChallengeDeclined, got.Status)
	assert.Equal(t, "alice", got.Challenger)

	_, err = e.lc.Decline(ctx, c.ID, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSweepExpired(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	old, err := e.lc.Create(ctx, "alice", "bob", domain.Blitz)
	require.NoError(t, err)
	e.clock.Advance(90 * time.Second)
	fresh, err := e.lc.Create(ctx, "carol", "bob", domain.Blitz)
	require.NoError(t, err)
	e.clock.Advance(45 * time.Second)

	n, err := e.lc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s, _ := e.mem.FindChallenge(ctx, old.ID)
	assert.Equal(t, domain.ChallengeExpired, s.Status)
	s, _ = e.mem.FindChallenge(ctx, fresh.ID)
	assert.Equal(t, domain.ChallengePending, s.Status)

	n, err = e.lc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRun_StopsOnCancel(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.lc.Run(ctx, 5*time.Millisecond) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
