package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const attemptKeyPrefix = "login:fail:"

// LoginAttempts counts failed logins per email in Redis. Each counter expires
// window after the first failure that created it.
type LoginAttempts struct {
	client *redis.Client
	window time.Duration
}

// NewLoginAttempts creates a Redis-backed failed login counter.
func NewLoginAttempts(client *redis.Client, window time.Duration) *LoginAttempts {
	return &LoginAttempts{client: client, window: window}
}

func attemptKey(email string) string {
	return attemptKeyPrefix + strings.ToLower(strings.TrimSpace(email))
}

// Failures returns the current number of failed attempts for email.
func (a *LoginAttempts) Failures(ctx context.Context, email string) (int, error) {
	n, err := a.client.Get(ctx, attemptKey(email)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get login failures: %w", err)
	}
	return n, nil
}

// RecordFailure increments the counter for email and returns the new count.
func (a *LoginAttempts) RecordFailure(ctx context.Context, email string) (int, error) {
	key := attemptKey(email)

	var incr *redis.IntCmd
	_, err := a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, a.window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("record login failure: %w", err)
	}
	return int(incr.Val()), nil
}

// Reset forgets the failures of email.
func (a *LoginAttempts) Reset(ctx context.Context, email string) error {
	if err := a.client.Del(ctx, attemptKey(email)).Err(); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (a *LoginAttempts) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}
