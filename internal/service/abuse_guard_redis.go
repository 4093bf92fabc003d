package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAuthAbuseGuard keeps failure state in redis hashes so the cooldown is
// shared across instances. State per (scope, dimension, key): failure count,
// last failure time, cooldown deadline.
type RedisAuthAbuseGuard struct {
	client redis.UniversalClient
	prefix string
	policy AuthAbusePolicy
}

func NewRedisAuthAbuseGuard(client redis.UniversalClient, prefix string, policy AuthAbusePolicy) *RedisAuthAbuseGuard {
	if prefix == "" {
		prefix = "auth_abuse"
	}
	return &RedisAuthAbuseGuard{client: client, prefix: prefix, policy: policy.normalized()}
}

func (g *RedisAuthAbuseGuard) Check(ctx context.Context, scope AuthAbuseScope, identity, ip string) (time.Duration, error) {
	if g.client == nil {
		return 0, nil
	}
	var longest time.Duration
	for _, key := range g.keys(scope, identity, ip) {
		cooldown, err := g.cooldownRemaining(ctx, key)
		if err != nil {
			return 0, err
		}
		if cooldown > longest {
			longest = cooldown
		}
	}
	return longest, nil
}

func (g *RedisAuthAbuseGuard) RegisterFailure(ctx context.Context, scope AuthAbuseScope, identity, ip string) (time.Duration, error) {
	if g.client == nil {
		return 0, nil
	}
	now := time.Now()
	var longest time.Duration
	for _, key := range g.keys(scope, identity, ip) {
		state, err := g.readState(ctx, key)
		if err != nil {
			return 0, err
		}
		if state.lastFailure.IsZero() || now.Sub(state.lastFailure) > g.policy.ResetWindow {
			state.failures = 0
		}
		state.failures++
		cooldown := g.cooldownFor(state.failures)
		fields := map[string]any{
			"failures":        state.failures,
			"last_failure_ms": now.UnixMilli(),
		}
		if cooldown > 0 {
			fields["cooldown_until_ms"] = now.Add(cooldown).UnixMilli()
		}
		pipe := g.client.TxPipeline()
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, g.policy.ResetWindow+g.policy.MaxDelay)
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, err
		}
		if cooldown > longest {
			longest = cooldown
		}
	}
	return longest, nil
}

func (g *RedisAuthAbuseGuard) Reset(ctx context.Context, scope AuthAbuseScope, identity, ip string) error {
	if g.client == nil {
		return nil
	}
	return g.client.Del(ctx, g.keys(scope, identity, ip)...).Err()
}

type abuseState struct {
	failures      int
	lastFailure   time.Time
	cooldownUntil time.Time
}

func (g *RedisAuthAbuseGuard) readState(ctx context.Context, key string) (abuseState, error) {
	var state abuseState
	values, err := g.client.HGetAll(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return state, err
	}
	// Malformed values are treated as absent rather than failing the login
	// path over a corrupt counter.
	if v, ok := values["failures"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			state.failures = n
		}
	}
	if v, ok := values["last_failure_ms"]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			state.lastFailure = time.UnixMilli(ms)
		}
	}
	if v, ok := values["cooldown_until_ms"]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			state.cooldownUntil = time.UnixMilli(ms)
		}
	}
	return state, nil
}

func (g *RedisAuthAbuseGuard) cooldownRemaining(ctx context.Context, key string) (time.Duration, error) {
	state, err := g.readState(ctx, key)
	if err != nil {
		return 0, err
	}
	if state.cooldownUntil.IsZero() {
		return 0, nil
	}
	remaining := time.Until(state.cooldownUntil)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

func (g *RedisAuthAbuseGuard) cooldownFor(failures int) time.Duration {
	over := failures - g.policy.FreeAttempts
	if over <= 0 {
		return 0
	}
	delay := float64(g.policy.BaseDelay) * math.Pow(g.policy.Multiplier, float64(over-1))
	if delay > float64(g.policy.MaxDelay) {
		delay = float64(g.policy.MaxDelay)
	}
	return time.Duration(delay)
}

func (g *RedisAuthAbuseGuard) keys(scope AuthAbuseScope, identity, ip string) []string {
	return []string{
		g.stateKey(scope, "id", normalizeAuthIdentity(identity)),
		g.stateKey(scope, "ip", ip),
	}
}

func (g *RedisAuthAbuseGuard) stateKey(scope AuthAbuseScope, dimension, value string) string {
	return fmt.Sprintf("%s:%s:%s:%s", g.prefix, scope, dimension, hashToken(value))
}
