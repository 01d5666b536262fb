package protocol

// Record is a win/loss/draw tally in one time control.
type Record struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}

// PlayerProfile is served by the profile endpoints.
type PlayerProfile struct {
	Login         string            `json:"login"`
	DisplayName   string            `json:"displayName"`
	BulletRating  int               `json:"bulletRating"`
	BlitzRating   int               `json:"blitzRating"`
	RapidRating   int               `json:"rapidRating"`
	IsOnline      bool              `json:"isOnline"`
	Stats         map[string]Record `json:"stats"`
	LastSeenMilli int64             `json:"lastSeen,omitempty"`
}

type UpdateProfileRequest struct {
	DisplayName string `json:"displayName"`
}
