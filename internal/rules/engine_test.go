package rules

import (
	"errors"
	"testing"

	"github.com/park285/cheese-arena/internal/domain"
)

func TestApplyOpeningMove(t *testing.T) {
	e := New()
	v, err := e.Apply(domain.StartFEN, "e2e4")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !v.Legal || v.Ended() {
		t.Fatalf("expected legal non-terminal move, got %+v", v)
	}
	if v.Position == domain.StartFEN || v.Position == "" {
		t.Fatalf("position not updated: %q", v.Position)
	}

	v, err = e.Apply(domain.StartFEN, "e2e5")
	if err != nil {
		t.Fatalf("Apply illegal: %v", err)
	}
	if v.Legal {
		t.Fatalf("e2e5 must be illegal from the start position")
	}
}

func TestApplyCheckmate(t *testing.T) {
	e := New()
	pos := domain.StartFEN
	for _, mv := range []string{"f2f3", "e7e5", "g2g4"} {
		v, err := e.Apply(pos, mv)
		if err != nil || !v.Legal {
			t.Fatalf("move %s: legal=%v err=%v", mv, v.Legal, err)
		}
		pos = v.Position
	}
	v, err := e.Apply(pos, "d8h4")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !v.Checkmate || !v.Check {
		t.Fatalf("expected checkmate, got %+v", v)
	}
}

func TestApplyStalemateAndDraw(t *testing.T) {
	e := New()
	v, err := e.Apply("k7/8/1K6/8/8/8/8/2Q5 w - - 0 1", "c1c7")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !v.Stalemate || v.Checkmate {
		t.Fatalf("expected stalemate, got %+v", v)
	}

	v, err = e.Apply("k7/8/8/8/8/8/8/6rK w - - 0 1", "h1g1")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !v.Draw {
		t.Fatalf("expected insufficient-material draw, got %+v", v)
	}
}

func TestApplyPromotionCaseInsensitive(t *testing.T) {
	e := New()
	v, err := e.Apply("8/P6k/8/8/8/8/8/K7 w - - 0 1", "a7a8Q")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !v.Legal {
		t.Fatalf("promotion should be legal")
	}
}

func TestApplyBadPosition(t *testing.T) {
	_, err := New().Apply("not a fen", "e2e4")
	if !errors.Is(err, ErrBadPosition) {
		t.Fatalf("expected ErrBadPosition, got %v", err)
	}
}

func TestSAN(t *testing.T) {
	san, err := SAN([]string{"e2e4", "e7e5", "g1f3"})
	if err != nil {
		t.Fatalf("SAN: %v", err)
	}
	want := []string{"e4", "e5", "Nf3"}
	for i := range want {
		if san[i] != want[i] {
			t.Fatalf("san[%d]=%q want %q", i, san[i], want[i])
		}
	}
}
