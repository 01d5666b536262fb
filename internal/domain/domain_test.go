package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeControl(t *testing.T) {
	for in, want := range map[string]TimeControl{"bullet": Bullet, " Blitz ": Blitz, "RAPID": Rapid} {
		tc, ok := ParseTimeControl(in)
		require.True(t, ok, in)
		assert.Equal(t, want, tc)
	}
	_, ok := ParseTimeControl("classical")
	assert.False(t, ok)

	assert.Equal(t, time.Minute, Bullet.Duration())
	assert.Equal(t, 3*time.Minute, Blitz.Duration())
	assert.Equal(t, 10*time.Minute, Rapid.Duration())
}

func TestResultRoundTrip(t *testing.T) {
	cases := []struct {
		outcome Outcome
		reason  Reason
		want    GameResult
	}{
		{OutcomeWhiteWin, ReasonCheckmate, ResultWhiteWin},
		{OutcomeBlackWin, ReasonTimeout, ResultBlackWinTimeout},
		{OutcomeWhiteWin, ReasonResignation, ResultWhiteWinResignation},
		{OutcomeDraw, ReasonTimeout, ResultDraw},
	}
	for _, c := range cases {
		got := ResultFor(c.outcome, c.reason)
		assert.Equal(t, c.want, got)
		assert.Equal(t, c.outcome, got.Outcome())
	}
	assert.Equal(t, Outcome(""), ResultNone.Outcome())
}

func TestSessionParticipants(t *testing.T) {
	g := NewGameSession("g1", "Alice", "bob", Blitz, time.Now())
	assert.Equal(t, "alice", g.White)
	assert.Equal(t, "alice", g.PlayerToMove())

	c, ok := g.ColorOf("ALICE")
	require.True(t, ok)
	assert.Equal(t, White, c)
	assert.Equal(t, "bob", g.Opponent("alice"))
	assert.Equal(t, "", g.Opponent("carol"))
	assert.False(t, g.IsParticipant("carol"))
}

func TestSessionDebitFloorsAtZero(t *testing.T) {
	g := NewGameSession("g1", "a", "b", Bullet, time.Now())
	g.Debit(White, 1500*time.Millisecond)
	assert.Equal(t, int64(58_500), g.WhiteClock)
	g.Debit(White, -time.Second)
	assert.Equal(t, int64(58_500), g.WhiteClock)
	g.Debit(Black, 2*time.Minute)
	assert.Equal(t, int64(0), g.BlackClock)
}

func TestSessionEndSetsWinner(t *testing.T) {
	now := time.Now()
	g := NewGameSession("g1", "a", "b", Rapid, now)
	g.End(ResultBlackWinResignation, now)
	assert.False(t, g.InProgress())
	assert.Equal(t, "b", g.Winner)

	d := NewGameSession("g2", "a", "b", Rapid, now)
	d.End(ResultDraw, now)
	assert.Empty(t, d.Winner)

	var nilSession *GameSession
	assert.False(t, nilSession.InProgress())
}

func TestCloneIsDeep(t *testing.T) {
	g := NewGameSession("g1", "a", "b", Blitz, time.Now())
	g.Moves = append(g.Moves, "e2e4")
	cp := g.Clone()
	cp.Moves[0] = "d2d4"
	assert.Equal(t, "e2e4", g.Moves[0])
}

func TestPlayerApplyResult(t *testing.T) {
	p := NewPlayer("Alice", "")
	assert.Equal(t, "alice", p.Login)
	// the display name keeps the handle as typed
	assert.Equal(t, "Alice", p.DisplayName)

	p.ApplyResult(Blitz, 1216, PlayerWin)
	p.ApplyResult(Blitz, 1210, PlayerDraw)
	st := p.Standing(Blitz)
	assert.Equal(t, Standing{Rating: 1210, Wins: 1, Draws: 1}, st)
	assert.Equal(t, DefaultRating, p.RatingFor(Bullet))

	var missing *Player
	assert.Equal(t, DefaultRating, missing.RatingFor(Rapid))
}

func TestChallengeExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewChallenge("Alice", "bob", Blitz, now, 0)
	assert.Equal(t, now.Add(ChallengeTTL), c.ExpiresAt)
	assert.True(t, c.Pending())
	assert.False(t, c.Expired(c.ExpiresAt))
	assert.True(t, c.Expired(c.ExpiresAt.Add(time.Millisecond)))
}
