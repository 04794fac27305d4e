package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters. A zero max disables the
// corresponding limit.
type Config struct {
	MaxLoginFailures        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// Limiter enforces per-email login and per-session refresh limits.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin returns ErrRateLimited once email has used up its failure budget
// for the current window. It does not count the attempt.
func (l *Limiter) CheckLogin(ctx context.Context, email string) error {
	if l.config.MaxLoginFailures <= 0 {
		return nil
	}

	count, err := l.redis.Get(ctx, loginKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(l.config.MaxLoginFailures) {
		return ErrRateLimited
	}
	return nil
}

// FailLogin records one failed login for email.
func (l *Limiter) FailLogin(ctx context.Context, email string) error {
	if l.config.MaxLoginFailures <= 0 {
		return nil
	}
	_, err := l.incrementWithTTL(ctx, loginKey(email), l.config.LoginCooldownDuration)
	return err
}

// ResetLogin clears the failure counter after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, email string) error {
	if l.config.MaxLoginFailures <= 0 {
		return nil
	}
	if err := l.redis.Del(ctx, loginKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CheckRefresh counts one refresh attempt for jti and returns ErrRateLimited
// when the window budget is exceeded.
func (l *Limiter) CheckRefresh(ctx context.Context, jti string) error {
	if l.config.MaxRefreshAttempts <= 0 {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, refreshKey(jti), l.config.RefreshCooldownDuration)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func loginKey(email string) string {
	return "rl:login:" + email
}

func refreshKey(jti string) string {
	return "rl:refresh:" + jti
}
