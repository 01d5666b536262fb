// Package rating computes Elo updates for finished games.
package rating

import (
	"math"

	"github.com/park285/cheese-arena/internal/domain"
)

// KFactor is the maximum rating swing of a single game.
const KFactor = 32

// Deltas are the rating changes a player would see for each result.
type Deltas struct {
	Win  int `json:"win"`
	Draw int `json:"draw"`
	Loss int `json:"loss"`
}

// ExpectedScore is the probability-weighted score of a against b.
func ExpectedScore(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// Update returns the new white and black ratings after outcome.
func Update(white, black int, outcome domain.Outcome) (int, int) {
	ws, bs := scores(outcome)
	return adjust(white, black, ws), adjust(black, white, bs)
}

// PredictDeltas returns the win/draw/loss changes for player against opponent.
func PredictDeltas(player, opponent int) Deltas {
	e := ExpectedScore(player, opponent)
	return Deltas{
		Win:  roundHalfUp(KFactor * (1 - e)),
		Draw: roundHalfUp(KFactor * (0.5 - e)),
		Loss: roundHalfUp(KFactor * (0 - e)),
	}
}

func adjust(own, opp int, score float64) int {
	e := ExpectedScore(own, opp)
	return roundHalfUp(float64(own) + KFactor*(score-e))
}

func scores(outcome domain.Outcome) (white, black float64) {
	switch outcome {
	case domain.OutcomeWhiteWin:
		return 1, 0
	case domain.OutcomeBlackWin:
		return 0, 1
	default:
		return 0.5, 0.5
	}
}

// roundHalfUp rounds .5 toward positive infinity, so -15.5 becomes -15.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
