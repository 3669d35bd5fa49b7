package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Atomic INCR that starts the window on the first hit; returns count and remaining ms
var incrExpireScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

// Result describes one counted request
type Result struct {
	Limit     int
	Remaining int
	ResetIn   time.Duration
	Allowed   bool
}

// Limiter is a fixed-window counter per key stored in Redis
type Limiter struct {
	rdb    *redis.Client
	max    int
	window time.Duration
}

func NewLimiter(rdb *redis.Client, max int, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, max: max, window: window}
}

// Allow counts a request against key
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	res, err := incrExpireScript.Run(ctx, l.rdb, []string{"rl:" + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return Result{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}

	count := int(res[0])
	remaining := l.max - count
	if remaining < 0 {
		remaining = 0
	}

	var resetIn time.Duration
	if res[1] > 0 {
		resetIn = time.Duration(res[1]) * time.Millisecond
	}

	return Result{
		Limit:     l.max,
		Remaining: remaining,
		ResetIn:   resetIn,
		Allowed:   count <= l.max,
	}, nil
}
