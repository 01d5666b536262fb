// Package rules adapts corentings/chess to the position-in, position-out contract the
// session manager consumes.
package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var ErrBadPosition = errors.New("rules: unreadable position")

// Verdict describes the result of applying one move token to a position.
type Verdict struct {
	Legal     bool
	Position  string
	Check     bool
	Checkmate bool
	Stalemate bool
	// Draw covers every drawing rule other than stalemate.
	Draw   bool
	Method string
}

// Ended reports whether the resulting position finishes the game.
func (v Verdict) Ended() bool { return v.Checkmate || v.Stalemate || v.Draw }

// Engine decides legality and terminal state for a FEN position and a UCI move.
type Engine interface {
	Apply(position, move string) (Verdict, error)
}

type Chess struct{}

func New() *Chess { return &Chess{} }

func (c *Chess) Apply(position, move string) (Verdict, error) {
	game, err := load(position)
	if err != nil {
		return Verdict{}, err
	}
	uci := strings.ToLower(strings.TrimSpace(move))
	if uci == "" {
		return Verdict{}, nil
	}
	if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		return Verdict{}, nil
	}

	v := Verdict{Legal: true, Position: game.FEN()}
	if last := lastMove(game); last != nil {
		v.Check = last.HasTag(nchess.Check)
	}
	if game.Outcome() == nchess.NoOutcome {
		return v, nil
	}
	v.Method = strings.ToLower(game.Method().String())
	switch game.Method() {
	case nchess.Checkmate:
		v.Checkmate = true
	case nchess.Stalemate:
		v.Stalemate = true
	default:
		if game.Outcome() == nchess.Draw {
			v.Draw = true
		}
	}
	return v, nil
}

// SAN replays UCI moves from the start position and returns them in algebraic notation.
func SAN(moves []string) ([]string, error) {
	game := nchess.NewGame()
	out := make([]string, 0, len(moves))
	for i, mv := range moves {
		pos := game.Position()
		decoded, err := nchess.UCINotation{}.Decode(pos, mv)
		if err != nil {
			return out, fmt.Errorf("decode move %d %q: %w", i+1, mv, err)
		}
		san := nchess.AlgebraicNotation{}.Encode(pos, decoded)
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return out, fmt.Errorf("replay move %d %q: %w", i+1, mv, err)
		}
		out = append(out, san)
	}
	return out, nil
}

func load(position string) (*nchess.Game, error) {
	position = strings.TrimSpace(position)
	if position == "" || position == "startpos" {
		return nchess.NewGame(), nil
	}
	opt, err := nchess.FEN(position)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPosition, err)
	}
	return nchess.NewGame(opt), nil
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}
