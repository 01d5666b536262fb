package pgstore

import (
	"strings"
	"testing"
	"time"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/rules"
)

func TestMapResultToPGN(t *testing.T) {
	cases := map[domain.Outcome]string{
		domain.OutcomeWhiteWin: "1-0",
		domain.OutcomeBlackWin: "0-1",
		domain.OutcomeDraw:     "1/2-1/2",
		"":                     "*",
	}
	for in, want := range cases {
		if got := mapResultToPGN(in); got != want {
			t.Fatalf("mapResultToPGN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildPGN_FoolsMate(t *testing.T) {
	san, err := rules.SAN([]string{"f2f3", "e7e5", "g2g4", "d8h4"})
	if err != nil {
		t.Fatalf("SAN: %v", err)
	}
	pgn := buildPGN(pgnGame{
		White:       `Al "the" ice`,
		Black:       "Bob",
		TimeControl: "BLITZ",
		Termination: "checkmate",
		Result:      "0-1",
		Date:        time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
		SAN:         san,
	})
	for _, want := range []string{
		`[Date "2026.02.03"]`,
		`[White "Al 'the' ice"]`,
		`[TimeControl "BLITZ"]`,
		`[Termination "checkmate"]`,
		`[Result "0-1"]`,
		"1. f3 e5 2. g4 Qh4",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("pgn missing %q:\n%s", want, pgn)
		}
	}
	if !strings.HasSuffix(pgn, " 0-1") {
		t.Fatalf("pgn should end with the result:\n%s", pgn)
	}
}

func TestApplyResultQuery(t *testing.T) {
	q := applyResultQuery(domain.Rapid, domain.PlayerWin)
	if !strings.Contains(q, "rapid_rating = $2") || !strings.Contains(q, "rapid_wins = rapid_wins + 1") {
		t.Fatalf("unexpected query: %s", q)
	}
	q = applyResultQuery(domain.Bullet, domain.PlayerDraw)
	if !strings.Contains(q, "bullet_draws = bullet_draws + 1") {
		t.Fatalf("unexpected query: %s", q)
	}
	q = applyResultQuery(domain.TimeControl("odd"), domain.PlayerLoss)
	if !strings.Contains(q, "blitz_losses = blitz_losses + 1") {
		t.Fatalf("unknown time control should fall back to blitz: %s", q)
	}
}

func TestNullTime(t *testing.T) {
	if nullTime(time.Time{}).Valid {
		t.Fatalf("zero time must be NULL")
	}
	if !nullTime(time.Now()).Valid {
		t.Fatalf("non-zero time must be valid")
	}
}
