//go:build integration

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/commerce/internal/infra/ratelimit"
	"github.com/floroz/commerce/pkg/testhelpers"
)

func TestLimiter_Allow(t *testing.T) {
	tr := testhelpers.NewTestRedis(t)
	defer tr.Close()
	ctx := context.Background()

	t.Run("blocks after max requests in the window", func(t *testing.T) {
		limiter := ratelimit.NewLimiter(tr.Client, 3, time.Minute)

		for i := 0; i < 3; i++ {
			res, err := limiter.Allow(ctx, "user:a")
			require.NoError(t, err)
			assert.True(t, res.Allowed)
			assert.Equal(t, 2-i, res.Remaining)
		}

		res, err := limiter.Allow(ctx, "user:a")
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Equal(t, 0, res.Remaining)
		assert.Greater(t, res.ResetIn, time.Duration(0))
	})

	t.Run("keys are counted separately", func(t *testing.T) {
		limiter := ratelimit.NewLimiter(tr.Client, 1, time.Minute)

		first, err := limiter.Allow(ctx, "user:b")
		require.NoError(t, err)
		other, err := limiter.Allow(ctx, "user:c")
		require.NoError(t, err)

		assert.True(t, first.Allowed)
		assert.True(t, other.Allowed)
	})

	t.Run("window resets", func(t *testing.T) {
		limiter := ratelimit.NewLimiter(tr.Client, 1, 200*time.Millisecond)

		_, err := limiter.Allow(ctx, "user:d")
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			res, err := limiter.Allow(ctx, "user:d")
			return err == nil && res.Allowed
		}, 3*time.Second, 100*time.Millisecond)
	})
}
