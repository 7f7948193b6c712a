package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dom/healthguide/internal/domain"
	"github.com/redis/go-redis/v9"
)

var ErrRedisUnavailable = errors.New("redis unavailable")

type ThrottleConfig struct {
	RequestLimit int
	VerifyLimit  int
	Window       time.Duration
}

// Throttle keeps fixed-window counters in Redis for challenge requests and
// failed code submissions, keyed by email.
type Throttle struct {
	redis  redis.UniversalClient
	config ThrottleConfig
	prefix string
}

func NewThrottle(client redis.UniversalClient, cfg ThrottleConfig) *Throttle {
	return &Throttle{redis: client, config: cfg, prefix: "healthguide:otp"}
}

// AllowRequest counts a challenge request and fails with domain.ErrRateLimited
// once the window budget is spent.
func (t *Throttle) AllowRequest(ctx context.Context, email string) error {
	if t.config.RequestLimit <= 0 {
		return nil
	}
	count, err := t.incrementWithTTL(ctx, t.key("req", email))
	if err != nil {
		return err
	}
	if count > int64(t.config.RequestLimit) {
		return domain.ErrRateLimited
	}
	return nil
}

// CheckVerify fails with domain.ErrRateLimited when too many wrong codes were submitted.
func (t *Throttle) CheckVerify(ctx context.Context, email string) error {
	if t.config.VerifyLimit <= 0 {
		return nil
	}
	count, err := t.redis.Get(ctx, t.key("verify", email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(t.config.VerifyLimit) {
		return domain.ErrRateLimited
	}
	return nil
}

func (t *Throttle) RecordVerifyFailure(ctx context.Context, email string) error {
	if t.config.VerifyLimit <= 0 {
		return nil
	}
	_, err := t.incrementWithTTL(ctx, t.key("verify", email))
	return err
}

// ResetVerify clears the failure counter after a successful verification.
func (t *Throttle) ResetVerify(ctx context.Context, email string) error {
	if err := t.redis.Del(ctx, t.key("verify", email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (t *Throttle) key(kind, email string) string {
	return t.prefix + ":" + kind + ":" + email
}

// incrementWithTTL creates the counter with its TTL and increments it in one
// MULTI, so a counter never exists without an expiry. SET NX leaves an
// existing key's TTL alone, keeping the window fixed.
func (t *Throttle) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	var incr *redis.IntCmd
	_, err := t.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetArgs(ctx, key, 0, redis.SetArgs{Mode: "NX", TTL: t.config.Window})
		incr = pipe.Incr(ctx, key)
		return nil
	})
	// SET NX on an existing key replies nil, which the pipeline reports as redis.Nil.
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	count, err := incr.Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}
