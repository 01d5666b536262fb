// Package store defines the persistence collaborators of the coordinator and an in-memory
// implementation used for development and tests. Lookups return (nil, nil) when the record
// does not exist.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/park285/cheese-arena/internal/domain"
)

var (
	// ErrStatusConflict is returned when a challenge is no longer in the expected status.
	ErrStatusConflict = errors.New("store: challenge status changed concurrently")
	ErrInvalidRecord  = errors.New("store: invalid record")
)

type PlayerStore interface {
	FindByLogin(ctx context.Context, login string) (*domain.Player, error)
	// Ensure returns the player, creating it with default ratings when missing.
	Ensure(ctx context.Context, login, displayName string) (*domain.Player, error)
	SetOnline(ctx context.Context, login string, online bool, at time.Time) error
	SetDisplayName(ctx context.Context, login, displayName string) error
	// ApplyResult stores rating and bumps one counter for tc in a single write.
	ApplyResult(ctx context.Context, login string, tc domain.TimeControl, rating int, outcome domain.PlayerOutcome) error
	ListOnline(ctx context.Context, exceptLogin string) ([]*domain.Player, error)
}

type GameStore interface {
	Save(ctx context.Context, g *domain.GameSession) error
	// FindByID loads the summary only; Moves is nil.
	FindByID(ctx context.Context, id string) (*domain.GameSession, error)
	FindByIDWithMoves(ctx context.Context, id string) (*domain.GameSession, error)
	FindActiveByPlayer(ctx context.Context, login string) (*domain.GameSession, error)
	FindByStates(ctx context.Context, states ...domain.GameState) ([]*domain.GameSession, error)
}

type ChallengeStore interface {
	// Create assigns and returns the challenge id.
	Create(ctx context.Context, c *domain.Challenge) (int64, error)
	FindChallenge(ctx context.Context, id int64) (*domain.Challenge, error)
	// UpdateStatus moves a challenge from one status to another or fails with ErrStatusConflict.
	UpdateStatus(ctx context.Context, id int64, from, to domain.ChallengeStatus) error
	FindPendingFor(ctx context.Context, challenged string) ([]*domain.Challenge, error)
	FindPendingBy(ctx context.Context, challenger string) ([]*domain.Challenge, error)
	FindExpired(ctx context.Context, now time.Time) ([]*domain.Challenge, error)
}
