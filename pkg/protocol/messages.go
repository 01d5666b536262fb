package protocol

type SearchGameRequest struct {
	TimeControl string `json:"timeControl"`
}

type ChallengeRequest struct {
	TargetLogin string `json:"targetLogin"`
	TimeControl string `json:"timeControl"`
}

type ChallengeRef struct {
	ChallengeID ID `json:"challengeId"`
}

type MoveRequest struct {
	GameID string `json:"gameId"`
	Move   string `json:"move"`
}

type GameRef struct {
	GameID string `json:"gameId"`
}

type ChatRequest struct {
	GameID  string `json:"gameId"`
	Message string `json:"message"`
}

type Notice struct {
	Message string `json:"message"`
}

type SearchStarted struct {
	TimeControl string `json:"timeControl"`
}

type ChallengeSent struct {
	ChallengeID int64  `json:"challengeId"`
	TargetUser  string `json:"targetUser"`
	TimeControl string `json:"timeControl"`
}

type IncomingChallenge struct {
	ChallengeID           int64  `json:"challengeId"`
	Challenger            string `json:"challenger"`
	ChallengerDisplayName string `json:"challengerDisplayName"`
	TimeControl           string `json:"timeControl"`
}

type ChallengeDeclined struct {
	ChallengeID int64  `json:"challengeId"`
	Message     string `json:"message"`
}

// GameData is the read-only projection of a session sent with gameStarted and gameUpdate.
type GameData struct {
	GameID string `json:"gameId"`

	WhitePlayer            string `json:"whitePlayer"`
	WhitePlayerDisplayName string `json:"whitePlayerDisplayName"`
	WhiteRating            int    `json:"whiteRating"`
	WhiteWinDelta          int    `json:"whiteWinDelta"`
	WhiteDrawDelta         int    `json:"whiteDrawDelta"`
	WhiteLossDelta         int    `json:"whiteLossDelta"`

	BlackPlayer            string `json:"blackPlayer"`
	BlackPlayerDisplayName string `json:"blackPlayerDisplayName"`
	BlackRating            int    `json:"blackRating"`
	BlackWinDelta          int    `json:"blackWinDelta"`
	BlackDrawDelta         int    `json:"blackDrawDelta"`
	BlackLossDelta         int    `json:"blackLossDelta"`

	BoardState    string   `json:"boardState"`
	Moves         []string `json:"moves"`
	IsWhiteTurn   bool     `json:"isWhiteTurn"`
	TimeControl   string   `json:"timeControl"`
	WhiteTimeLeft int64    `json:"whiteTimeLeft"`
	BlackTimeLeft int64    `json:"blackTimeLeft"`
	State         string   `json:"state"`
	Result        string   `json:"result,omitempty"`
}

// Participants returns the white and black logins.
func (g *GameData) Participants() []string {
	return []string{g.WhitePlayer, g.BlackPlayer}
}

// WinnerDraw is the winner value of a drawn game.
const WinnerDraw = "draw"

type GameEnded struct {
	GameID      string `json:"gameId"`
	Winner      string `json:"winner"`
	Result      string `json:"result"`
	WhiteRating int    `json:"whiteRating"`
	BlackRating int    `json:"blackRating"`

	White string `json:"-"`
	Black string `json:"-"`
}

type ChatMessage struct {
	GameID    string `json:"gameId"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}
