package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/cheese-arena/internal/domain"
)

// VerifyPath is queried with the caller's bearer token.
const VerifyPath = "/api/auth/verify"

// RemoteResolver asks the identity service who owns a token.
type RemoteResolver struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*RemoteResolver)

func WithTimeout(d time.Duration) Option {
	return func(r *RemoteResolver) { r.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(r *RemoteResolver) { r.retryMax = max }
}

// WithDial replaces the TCP dialer, e.g. with an in-memory listener.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(r *RemoteResolver) { r.http.Dial = dial }
}

func NewRemoteResolver(baseURL string, opts ...Option) *RemoteResolver {
	r := &RemoteResolver{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 5 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type verifyResponse struct {
	Login       string `json:"login"`
	DisplayName string `json:"displayName"`
}

func (r *RemoteResolver) Resolve(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrUnauthorized
	}
	var out verifyResponse
	if err := r.doJSON(ctx, fasthttp.MethodGet, VerifyPath, token, &out); err != nil {
		return Identity{}, err
	}
	login := domain.NormalizeLogin(out.Login)
	if login == "" {
		return Identity{}, ErrUnauthorized
	}
	name := strings.TrimSpace(out.DisplayName)
	if name == "" {
		name = login
	}
	return Identity{Login: login, DisplayName: name}, nil
}

func (r *RemoteResolver) doJSON(ctx context.Context, method, path, token string, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(r.baseURL + path)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	attempts := r.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := r.http.DoDeadline(req, resp, r.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("identity request failed: %w", err)
			if attempt == attempts {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden || status == fasthttp.StatusNotFound {
			return ErrUnauthorized
		}
		if status < 200 || status >= 300 {
			lastErr = fmt.Errorf("identity service error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if attempt == attempts || !shouldRetryStatus(status) {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode identity: %w", err)
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("identity request: no attempts made")
	}
	return lastErr
}

func (r *RemoteResolver) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(r.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDuration doubles from 100ms, capped at 3.2s.
func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
