package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/park285/cheese-arena/internal/domain"
)

func TestMemoryPlayersEnsureAndResult(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	p, err := m.Ensure(ctx, "Alice", "Alice A.")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if p.Login != "alice" || p.Blitz.Rating != domain.DefaultRating {
		t.Fatalf("unexpected player: %+v", p)
	}
	// second Ensure keeps the stored record
	if _, err := m.Ensure(ctx, "ALICE", "other"); err != nil {
		t.Fatalf("Ensure again: %v", err)
	}
	got, _ := m.FindByLogin(ctx, "alice")
	if got.DisplayName != "Alice A." {
		t.Fatalf("display name overwritten: %q", got.DisplayName)
	}

	if err := m.ApplyResult(ctx, "alice", domain.Blitz, 1216, domain.PlayerWin); err != nil {
		t.Fatalf("ApplyResult: %v", err)
	}
	got, _ = m.FindByLogin(ctx, "alice")
	if got.Blitz.Rating != 1216 || got.Blitz.Wins != 1 || got.Rapid.Rating != domain.DefaultRating {
		t.Fatalf("unexpected standing: %+v", got)
	}

	// returned copies are detached from the store
	got.Blitz.Rating = 9999
	again, _ := m.FindByLogin(ctx, "alice")
	if again.Blitz.Rating != 1216 {
		t.Fatalf("store mutated through returned copy")
	}
}

func TestMemoryOnlineList(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, l := range []string{"a", "b", "c"} {
		if _, err := m.Ensure(ctx, l, l); err != nil {
			t.Fatalf("Ensure: %v", err)
		}
	}
	_ = m.SetOnline(ctx, "a", true, time.Now())
	_ = m.SetOnline(ctx, "b", true, time.Now())
	list, _ := m.ListOnline(ctx, "a")
	if len(list) != 1 || list[0].Login != "b" {
		t.Fatalf("unexpected online list: %+v", list)
	}
}

func TestMemoryGamesActiveIndexAndSummary(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	g := domain.NewGameSession("g1", "a", "b", domain.Blitz, time.Now())
	g.Moves = append(g.Moves, "e2e4")
	if err := m.Save(ctx, g); err != nil {
		t.Fatalf("Save: %v", err)
	}

	sum, _ := m.FindByID(ctx, "g1")
	if sum == nil || sum.Moves != nil {
		t.Fatalf("summary should not carry moves: %+v", sum)
	}
	full, _ := m.FindByIDWithMoves(ctx, "g1")
	if full == nil || len(full.Moves) != 1 {
		t.Fatalf("full load should carry moves: %+v", full)
	}

	active, _ := m.FindActiveByPlayer(ctx, "B")
	if active == nil || active.ID != "g1" {
		t.Fatalf("expected active game for b")
	}

	g.End(domain.ResultDraw, time.Now())
	_ = m.Save(ctx, g)
	active, _ = m.FindActiveByPlayer(ctx, "b")
	if active != nil {
		t.Fatalf("ended game still indexed as active")
	}
	ended, _ := m.FindByStates(ctx, domain.StateEnded)
	if len(ended) != 1 {
		t.Fatalf("expected 1 ended game, got %d", len(ended))
	}
}

func TestMemoryChallengeTransitions(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()
	c := domain.NewChallenge("a", "b", domain.Rapid, now.Add(-3*time.Minute), domain.ChallengeTTL)
	id, err := m.Create(ctx, c)
	if err != nil || id == 0 {
		t.Fatalf("Create: id=%d err=%v", id, err)
	}

	pending, _ := m.FindPendingFor(ctx, "b")
	if len(pending) != 1 {
		t.Fatalf("expected pending challenge for b")
	}
	expired, _ := m.FindExpired(ctx, now)
	if len(expired) != 1 {
		t.Fatalf("expected expired challenge")
	}

	if err := m.UpdateStatus(ctx, id, domain.ChallengePending, domain.ChallengeExpired); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := m.UpdateStatus(ctx, id, domain.ChallengePending, domain.ChallengeAccepted); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	by, _ := m.FindPendingBy(ctx, "a")
	if len(by) != 0 {
		t.Fatalf("terminal challenge still pending")
	}
}
