package domain

import "time"

// Standing is a player's rating and record in one time control.
type Standing struct {
	Rating int `json:"rating"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}

// PlayerOutcome is the result of a finished game from one player's side.
type PlayerOutcome int

const (
	PlayerLoss PlayerOutcome = iota
	PlayerDraw
	PlayerWin
)

type Player struct {
	Login       string    `json:"login"`
	DisplayName string    `json:"displayName"`
	Bullet      Standing  `json:"bullet"`
	Blitz       Standing  `json:"blitz"`
	Rapid       Standing  `json:"rapid"`
	Online      bool      `json:"isOnline"`
	LastSeen    time.Time `json:"lastSeen,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// NewPlayer returns a player with default ratings in every time control.
func NewPlayer(login, displayName string) *Player {
	if displayName == "" {
		displayName = login
	}
	st := Standing{Rating: DefaultRating}
	return &Player{
		Login:       NormalizeLogin(login),
		DisplayName: displayName,
		Bullet:      st,
		Blitz:       st,
		Rapid:       st,
		CreatedAt:   time.Now(),
	}
}

func (p *Player) standing(tc TimeControl) *Standing {
	switch tc {
	case Bullet:
		return &p.Bullet
	case Rapid:
		return &p.Rapid
	default:
		return &p.Blitz
	}
}

// Standing returns a copy of the standing for tc.
func (p *Player) Standing(tc TimeControl) Standing {
	if p == nil {
		return Standing{Rating: DefaultRating}
	}
	return *p.standing(tc)
}

func (p *Player) RatingFor(tc TimeControl) int {
	return p.Standing(tc).Rating
}

// ApplyResult stores the new rating and bumps the matching counter.
func (p *Player) ApplyResult(tc TimeControl, rating int, outcome PlayerOutcome) {
	st := p.standing(tc)
	st.Rating = rating
	switch outcome {
	case PlayerWin:
		st.Wins++
	case PlayerLoss:
		st.Losses++
	default:
		st.Draws++
	}
}

func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
