// Package auth turns bearer tokens into player identities. Verification itself belongs to
// an external service; this package only asks it.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/park285/cheese-arena/internal/domain"
)

var ErrUnauthorized = errors.New("auth: invalid or expired token")

// Identity is the verified owner of a token.
type Identity struct {
	Login       string `json:"login"`
	DisplayName string `json:"displayName"`
}

type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	h := strings.TrimSpace(header)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// StaticResolver serves a fixed token table, for development and tests.
type StaticResolver struct {
	tokens map[string]Identity
}

func NewStaticResolver(tokens map[string]Identity) *StaticResolver {
	cp := make(map[string]Identity, len(tokens))
	for tok, id := range tokens {
		id.Login = domain.NormalizeLogin(id.Login)
		if id.DisplayName == "" {
			id.DisplayName = id.Login
		}
		cp[tok] = id
	}
	return &StaticResolver{tokens: cp}
}

// ParseTokens reads "token=login[:Display Name]" entries separated by commas.
func ParseTokens(raw string) (map[string]Identity, error) {
	out := make(map[string]Identity)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tok, rest, ok := strings.Cut(part, "=")
		tok = strings.TrimSpace(tok)
		if !ok || tok == "" {
			return nil, fmt.Errorf("auth token entry %q: want token=login[:name]", part)
		}
		login, name, _ := strings.Cut(rest, ":")
		login = domain.NormalizeLogin(login)
		if login == "" {
			return nil, fmt.Errorf("auth token entry %q: empty login", part)
		}
		out[tok] = Identity{Login: login, DisplayName: strings.TrimSpace(name)}
	}
	return out, nil
}

func (s *StaticResolver) Resolve(ctx context.Context, token string) (Identity, error) {
	id, ok := s.tokens[strings.TrimSpace(token)]
	if !ok {
		return Identity{}, ErrUnauthorized
	}
	return id, nil
}

// Chain asks each resolver in order. Only ErrUnauthorized falls through to the next one.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, token string) (Identity, error) {
	if len(c) == 0 {
		return Identity{}, ErrUnauthorized
	}
	var err error
	for _, r := range c {
		var id Identity
		id, err = r.Resolve(ctx, token)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrUnauthorized) {
			return Identity{}, err
		}
	}
	return Identity{}, err
}
