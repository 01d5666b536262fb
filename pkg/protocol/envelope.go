// Package protocol defines the JSON envelopes exchanged with clients over the game socket.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Inbound message types.
const (
	TypeSearchGame       = "searchGame"
	TypeCancelSearch     = "cancelSearch"
	TypeChallenge        = "challenge"
	TypeAcceptChallenge  = "acceptChallenge"
	TypeDeclineChallenge = "declineChallenge"
	TypeMove             = "move"
	TypeResign           = "resign"
	TypeChat             = "chat"
)

// Outbound message types. Move rejections use the MoveResult name as their type.
const (
	TypeConnected         = "connected"
	TypeSearchStarted     = "searchStarted"
	TypeSearchCancelled   = "searchCancelled"
	TypeChallengeSent     = "challengeSent"
	TypeIncomingChallenge = "incomingChallenge"
	TypeChallengeDeclined = "challengeDeclined"
	TypeGameStarted       = "gameStarted"
	TypeGameUpdate        = "gameUpdate"
	TypeGameEnded         = "gameEnded"
	TypeChatMessage       = "chatMessage"
	TypeError             = "error"
)

var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is the frame read from a client. Data is decoded once the type is known.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is the frame written to a client.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func NewOutbound(typ string, data any) Outbound {
	return Outbound{Type: typ, Data: data}
}

// Decode unmarshals Data into v. Missing data decodes as an empty object.
func (e Envelope) Decode(v any) error {
	raw := bytes.TrimSpace(e.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Join(ErrMalformedEnvelope, err)
	}
	return nil
}

// ID accepts both JSON numbers and numeric strings.
type ID int64

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*id = ID(n)
	return nil
}

func (id ID) Int64() int64 { return int64(id) }
