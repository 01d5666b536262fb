package game

import (
	"errors"

	"github.com/park285/cheese-arena/pkg/protocol"
)

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrGameNotStarted = errors.New("game is not in progress")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrInvalidMove    = errors.New("invalid move")
)

// MoveResult is the outcome of ApplyMove. Rejections double as outbound message types.
type MoveResult string

const (
	MoveSuccess        MoveResult = "SUCCESS"
	MoveNotYourTurn    MoveResult = "NOT_YOUR_TURN"
	MoveInvalid        MoveResult = "INVALID_MOVE"
	MoveGameNotFound   MoveResult = "GAME_NOT_FOUND"
	MoveGameNotStarted MoveResult = "GAME_NOT_STARTED"
	MoveGameEnded      MoveResult = "GAME_ENDED"
	MoveError          MoveResult = "ERROR"
)

// ResultOf maps an ApplyMove error to its MoveResult.
func ResultOf(err error) MoveResult {
	switch {
	case err == nil:
		return MoveSuccess
	case errors.Is(err, ErrGameNotFound):
		return MoveGameNotFound
	case errors.Is(err, ErrGameNotStarted):
		return MoveGameNotStarted
	case errors.Is(err, ErrNotYourTurn):
		return MoveNotYourTurn
	case errors.Is(err, ErrInvalidMove):
		return MoveInvalid
	default:
		return MoveError
	}
}

// Notifier receives session events. The router implements it; calls happen while the
// session is locked, so implementations must not block or call back into Manager.
type Notifier interface {
	GameStarted(data *protocol.GameData)
	GameUpdated(data *protocol.GameData)
	GameEnded(ev *protocol.GameEnded)
}

type nopNotifier struct{}

func (nopNotifier) GameStarted(*protocol.GameData) {}
func (nopNotifier) GameUpdated(*protocol.GameData) {}
func (nopNotifier) GameEnded(*protocol.GameEnded)  {}
