//go:build integration

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/commerce/internal/infra/session"
	"github.com/floroz/commerce/pkg/testhelpers"
)

func TestRedisStore(t *testing.T) {
	tr := testhelpers.NewTestRedis(t)
	defer tr.Close()
	ctx := context.Background()

	t.Run("create then get returns the user", func(t *testing.T) {
		store := session.NewRedisStore(tr.Client, time.Hour)
		userID := uuid.New()

		id, err := store.Create(ctx, userID, "alice")
		require.NoError(t, err)
		assert.Len(t, id, 43)

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, userID, got)

		ttl, err := tr.Client.TTL(ctx, "session:"+id).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 59*time.Minute)
	})

	t.Run("deleted session is gone", func(t *testing.T) {
		store := session.NewRedisStore(tr.Client, time.Hour)
		id, err := store.Create(ctx, uuid.New(), "bob")
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, id))

		_, err = store.Get(ctx, id)
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("unknown session", func(t *testing.T) {
		store := session.NewRedisStore(tr.Client, time.Hour)

		_, err := store.Get(ctx, "does-not-exist")
		assert.ErrorIs(t, err, session.ErrNotFound)
		assert.NoError(t, store.Delete(ctx, "does-not-exist"))
	})

	t.Run("session expires after ttl", func(t *testing.T) {
		store := session.NewRedisStore(tr.Client, 100*time.Millisecond)
		id, err := store.Create(ctx, uuid.New(), "carol")
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			_, err := store.Get(ctx, id)
			return err != nil
		}, 3*time.Second, 50*time.Millisecond)
	})
}
