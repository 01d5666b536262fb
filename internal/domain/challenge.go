package domain

import "time"

// ChallengeStatus moves only from PENDING to one of the terminal values.
type ChallengeStatus string

const (
	ChallengePending  ChallengeStatus = "PENDING"
	ChallengeAccepted ChallengeStatus = "ACCEPTED"
	ChallengeDeclined ChallengeStatus = "DECLINED"
	ChallengeExpired  ChallengeStatus = "EXPIRED"
)

// ChallengeTTL is how long a challenge stays acceptable.
const ChallengeTTL = 2 * time.Minute

type Challenge struct {
	ID          int64           `json:"id"`
	Challenger  string          `json:"challenger"`
	Challenged  string          `json:"challenged"`
	TimeControl TimeControl     `json:"timeControl"`
	Status      ChallengeStatus `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	ExpiresAt   time.Time       `json:"expiresAt"`
}

func NewChallenge(challenger, challenged string, tc TimeControl, now time.Time, ttl time.Duration) *Challenge {
	if ttl <= 0 {
		ttl = ChallengeTTL
	}
	return &Challenge{
		Challenger:  NormalizeLogin(challenger),
		Challenged:  NormalizeLogin(challenged),
		TimeControl: tc,
		Status:      ChallengePending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func (c *Challenge) Pending() bool { return c != nil && c.Status == ChallengePending }

// Expired reports whether now is past the expiry time.
func (c *Challenge) Expired(now time.Time) bool { return now.After(c.ExpiresAt) }

func (c *Challenge) Clone() *Challenge {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
