package domain

import "time"

// GameState is the lifecycle of a session. ENDED is terminal.
type GameState string

const (
	StateWaiting    GameState = "WAITING"
	StateInProgress GameState = "IN_PROGRESS"
	StateEnded      GameState = "ENDED"
)

// Outcome is the side-neutral result of a game.
type Outcome string

const (
	OutcomeWhiteWin Outcome = "white-win"
	OutcomeBlackWin Outcome = "black-win"
	OutcomeDraw     Outcome = "draw"
)

// Reason explains how a game ended.
type Reason string

const (
	ReasonCheckmate   Reason = "checkmate"
	ReasonDrawRule    Reason = "draw-rule"
	ReasonTimeout     Reason = "timeout"
	ReasonResignation Reason = "resignation"
)

// GameResult combines outcome and reason into the wire value.
type GameResult string

const (
	ResultNone                GameResult = ""
	ResultWhiteWin            GameResult = "WHITE_WIN"
	ResultBlackWin            GameResult = "BLACK_WIN"
	ResultDraw                GameResult = "DRAW"
	ResultWhiteWinTimeout     GameResult = "WHITE_WIN_TIMEOUT"
	ResultBlackWinTimeout     GameResult = "BLACK_WIN_TIMEOUT"
	ResultWhiteWinResignation GameResult = "WHITE_WIN_RESIGNATION"
	ResultBlackWinResignation GameResult = "BLACK_WIN_RESIGNATION"
)

// ResultFor maps an outcome and reason to a GameResult.
func ResultFor(outcome Outcome, reason Reason) GameResult {
	if outcome == OutcomeDraw {
		return ResultDraw
	}
	white := outcome == OutcomeWhiteWin
	switch reason {
	case ReasonTimeout:
		if white {
			return ResultWhiteWinTimeout
		}
		return ResultBlackWinTimeout
	case ReasonResignation:
		if white {
			return ResultWhiteWinResignation
		}
		return ResultBlackWinResignation
	default:
		if white {
			return ResultWhiteWin
		}
		return ResultBlackWin
	}
}

// WinFor returns the decisive outcome in favour of c.
func WinFor(c Color) Outcome {
	if c == White {
		return OutcomeWhiteWin
	}
	return OutcomeBlackWin
}

func (r GameResult) Outcome() Outcome {
	switch r {
	case ResultWhiteWin, ResultWhiteWinTimeout, ResultWhiteWinResignation:
		return OutcomeWhiteWin
	case ResultBlackWin, ResultBlackWinTimeout, ResultBlackWinResignation:
		return OutcomeBlackWin
	case ResultDraw:
		return OutcomeDraw
	default:
		return ""
	}
}

func (r GameResult) Reason() Reason {
	switch r {
	case ResultWhiteWinTimeout, ResultBlackWinTimeout:
		return ReasonTimeout
	case ResultWhiteWinResignation, ResultBlackWinResignation:
		return ReasonResignation
	case ResultWhiteWin, ResultBlackWin:
		return ReasonCheckmate
	case ResultDraw:
		return ReasonDrawRule
	default:
		return ""
	}
}

// GameSession is the authoritative record of one game.
type GameSession struct {
	ID          string      `json:"id"`
	White       string      `json:"white"`
	Black       string      `json:"black"`
	TimeControl TimeControl `json:"timeControl"`
	State       GameState   `json:"state"`
	Position    string      `json:"position"`
	Moves       []string    `json:"moves"`
	WhiteClock  int64       `json:"whiteClockMs"`
	BlackClock  int64       `json:"blackClockMs"`
	WhiteToMove bool        `json:"whiteToMove"`
	LastMoveAt  time.Time   `json:"lastMoveAt,omitempty"`
	Result      GameResult  `json:"result,omitempty"`
	Winner      string      `json:"winner,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	EndedAt     time.Time   `json:"endedAt,omitempty"`
}

// NewGameSession returns an IN_PROGRESS session with full clocks and white to move.
func NewGameSession(id, white, black string, tc TimeControl, now time.Time) *GameSession {
	clock := tc.StartingClock()
	return &GameSession{
		ID:          id,
		White:       NormalizeLogin(white),
		Black:       NormalizeLogin(black),
		TimeControl: tc,
		State:       StateInProgress,
		Position:    StartFEN,
		Moves:       []string{},
		WhiteClock:  clock,
		BlackClock:  clock,
		WhiteToMove: true,
		CreatedAt:   now,
	}
}

func (g *GameSession) InProgress() bool { return g != nil && g.State == StateInProgress }

func (g *GameSession) SideToMove() Color {
	if g.WhiteToMove {
		return White
	}
	return Black
}

// PlayerToMove returns the login of the side to move.
func (g *GameSession) PlayerToMove() string {
	return g.PlayerOf(g.SideToMove())
}

func (g *GameSession) PlayerOf(c Color) string {
	if c == White {
		return g.White
	}
	return g.Black
}

// ColorOf reports which side login plays.
func (g *GameSession) ColorOf(login string) (Color, bool) {
	login = NormalizeLogin(login)
	switch login {
	case g.White:
		return White, true
	case g.Black:
		return Black, true
	default:
		return "", false
	}
}

func (g *GameSession) IsParticipant(login string) bool {
	_, ok := g.ColorOf(login)
	return ok
}

// Opponent returns the other participant, or "" if login is not playing.
func (g *GameSession) Opponent(login string) string {
	c, ok := g.ColorOf(login)
	if !ok {
		return ""
	}
	return g.PlayerOf(c.Opposite())
}

// Clock returns the remaining milliseconds of side c.
func (g *GameSession) Clock(c Color) int64 {
	if c == White {
		return g.WhiteClock
	}
	return g.BlackClock
}

func (g *GameSession) setClock(c Color, ms int64) {
	if ms < 0 {
		ms = 0
	}
	if c == White {
		g.WhiteClock = ms
	} else {
		g.BlackClock = ms
	}
}

// Debit subtracts elapsed from side c, floored at zero.
func (g *GameSession) Debit(c Color, elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	g.setClock(c, g.Clock(c)-elapsed.Milliseconds())
}

// End moves the session to ENDED. Callers check InProgress first.
func (g *GameSession) End(result GameResult, now time.Time) {
	g.State = StateEnded
	g.Result = result
	g.EndedAt = now
	switch result.Outcome() {
	case OutcomeWhiteWin:
		g.Winner = g.White
	case OutcomeBlackWin:
		g.Winner = g.Black
	default:
		g.Winner = ""
	}
}

func (g *GameSession) Clone() *GameSession {
	if g == nil {
		return nil
	}
	cp := *g
	if g.Moves != nil {
		cp.Moves = append([]string(nil), g.Moves...)
	}
	return &cp
}
