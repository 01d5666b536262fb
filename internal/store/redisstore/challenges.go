// Package redisstore keeps challenges in Redis so several coordinator processes can share
// them. Records are JSON under challenge:<id>; pending ones are indexed by expiry and by
// both participants.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/store"
)

// DefaultRetention is how long resolved challenges stay readable.
const DefaultRetention = 7 * 24 * time.Hour

const maxTxAttempts = 5

type Challenges struct {
	rdb       *redis.Client
	retention time.Duration
}

var _ store.ChallengeStore = (*Challenges)(nil)

func New(rdb *redis.Client) *Challenges {
	return &Challenges{rdb: rdb, retention: DefaultRetention}
}

// Open parses a redis:// URL, pings the server and returns the store.
func Open(ctx context.Context, rawURL string) (*Challenges, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("redis url required")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb), nil
}

func (s *Challenges) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func keyRecord(id int64) string { return "challenge:" + strconv.FormatInt(id, 10) }
func keySeq() string { return "challenge:seq" }

// keyPending is a sorted set of pending ids scored by expiry in unix milliseconds.
func keyPending() string { return "challenge:pending" }
func keyPendingTo(login string) string { return "challenge:pending:to:" + login }
func keyPendingBy(login string) string { return "challenge:pending:by:" + login }

func (s *Challenges) Create(ctx context.Context, c *domain.Challenge) (int64, error) {
	if c == nil || c.Challenger == "" || c.Challenged == "" {
		return 0, store.ErrInvalidRecord
	}
	id, err := s.rdb.Incr(ctx, keySeq()).Result()
	if err != nil {
		return 0, fmt.Errorf("allocate challenge id: %w", err)
	}
	c.ID = id
	raw, err := json.Marshal(c)
	if err != nil {
		return 0, err
	}
	member := strconv.FormatInt(id, 10)
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, keyRecord(id), raw, 0)
	if c.Pending() {
		pipe.ZAdd(ctx, keyPending(), redis.Z{Score: float64(c.ExpiresAt.UnixMilli()), Member: member})
		pipe.SAdd(ctx, keyPendingTo(c.Challenged), member)
		pipe.SAdd(ctx, keyPendingBy(c.Challenger), member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("save challenge: %w", err)
	}
	return id, nil
}

func (s *Challenges) FindChallenge(ctx context.Context, id int64) (*domain.Challenge, error) {
	return s.load(ctx, s.rdb, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Challenges) load(ctx context.Context, g getter, id int64) (*domain.Challenge, error) {
	raw, err := g.Get(ctx, keyRecord(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var c domain.Challenge
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: challenge %d: %v", store.ErrInvalidRecord, id, err)
	}
	return &c, nil
}

// UpdateStatus compares and sets the status under WATCH, keeping the pending indexes in step.
func (s *Challenges) UpdateStatus(ctx context.Context, id int64, from, to domain.ChallengeStatus) error {
	key := keyRecord(id)
	txf := func(tx *redis.Tx) error {
		cur, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur == nil || cur.Status != from {
			return store.ErrStatusConflict
		}
		cur.Status = to
		raw, err := json.Marshal(cur)
		if err != nil {
			return err
		}
		member := strconv.FormatInt(id, 10)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if to == domain.ChallengePending {
				pipe.Set(ctx, key, raw, 0)
				pipe.ZAdd(ctx, keyPending(), redis.Z{Score: float64(cur.ExpiresAt.UnixMilli()), Member: member})
				pipe.SAdd(ctx, keyPendingTo(cur.Challenged), member)
				pipe.SAdd(ctx, keyPendingBy(cur.Challenger), member)
				return nil
			}
			pipe.Set(ctx, key, raw, s.retention)
			pipe.ZRem(ctx, keyPending(), member)
			pipe.SRem(ctx, keyPendingTo(cur.Challenged), member)
			pipe.SRem(ctx, keyPendingBy(cur.Challenger), member)
			return nil
		})
		return err
	}
	for i := 0; i < maxTxAttempts; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return store.ErrStatusConflict
}

func (s *Challenges) FindPendingFor(ctx context.Context, challenged string) ([]*domain.Challenge, error) {
	ids, err := s.rdb.SMembers(ctx, keyPendingTo(domain.NormalizeLogin(challenged))).Result()
	if err != nil {
		return nil, err
	}
	return s.loadPending(ctx, ids, time.Time{})
}

func (s *Challenges) FindPendingBy(ctx context.Context, challenger string) ([]*domain.Challenge, error) {
	ids, err := s.rdb.SMembers(ctx, keyPendingBy(domain.NormalizeLogin(challenger))).Result()
	if err != nil {
		return nil, err
	}
	return s.loadPending(ctx, ids, time.Time{})
}

// FindExpired reads the expiry index up to now. ExpiresAt equal to now is not yet expired.
func (s *Challenges) FindExpired(ctx context.Context, now time.Time) ([]*domain.Challenge, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, keyPending(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	return s.loadPending(ctx, ids, now)
}

// loadPending resolves index members, skipping anything no longer PENDING. A non-zero
// expiredAt keeps only challenges past that instant.
func (s *Challenges) loadPending(ctx context.Context, members []string, expiredAt time.Time) ([]*domain.Challenge, error) {
	out := make([]*domain.Challenge, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		c, err := s.load(ctx, s.rdb, id)
		if err != nil {
			return nil, err
		}
		if !c.Pending() {
			continue
		}
		if !expiredAt.IsZero() && !c.Expired(expiredAt) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
