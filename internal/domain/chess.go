package domain

import (
	"strings"
	"time"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// DefaultRating is assigned to every time control of a new player.
const DefaultRating = 1200

// TimeControl fixes the starting clock of both sides. There is no increment.
type TimeControl string

const (
	Bullet TimeControl = "BULLET"
	Blitz  TimeControl = "BLITZ"
	Rapid  TimeControl = "RAPID"
)

// TimeControls lists the supported classes in display order.
var TimeControls = []TimeControl{Bullet, Blitz, Rapid}

// ParseTimeControl accepts the wire identifier in any case.
func ParseTimeControl(s string) (TimeControl, bool) {
	tc := TimeControl(strings.ToUpper(strings.TrimSpace(s)))
	if !tc.Valid() {
		return "", false
	}
	return tc, true
}

func (tc TimeControl) Valid() bool {
	switch tc {
	case Bullet, Blitz, Rapid:
		return true
	default:
		return false
	}
}

// StartingClock returns the initial remaining time in milliseconds.
func (tc TimeControl) StartingClock() int64 {
	switch tc {
	case Bullet:
		return 60_000
	case Blitz:
		return 180_000
	case Rapid:
		return 600_000
	default:
		return 0
	}
}

func (tc TimeControl) Duration() time.Duration {
	return time.Duration(tc.StartingClock()) * time.Millisecond
}

func (tc TimeControl) String() string { return string(tc) }

// Color identifies a side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

// NormalizeLogin folds a login handle to its canonical key. Logins compare case-insensitively.
func NormalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}
