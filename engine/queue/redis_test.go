package queue

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisQueue(t *testing.T) (*RedisQueue, context.Context) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q, err := NewRedisQueue(client, "hookline:jobs:test")
	require.NoError(t, err)
	return q, context.Background()
}

func TestRedisQueue(t *testing.T) {
	t.Run("Should drain jobs in enqueue order", func(t *testing.T) {
		q, ctx := setupRedisQueue(t)
		require.NoError(t, q.Push(ctx, []byte("first")))
		require.NoError(t, q.Push(ctx, []byte("second")))
		require.NoError(t, q.Push(ctx, []byte("third")))

		for _, want := range []string{"first", "second", "third"} {
			got, err := q.Pop(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, string(got))
		}
	})

	t.Run("Should report empty with the sentinel, not an error", func(t *testing.T) {
		q, ctx := setupRedisQueue(t)
		data, err := q.Pop(ctx)
		require.ErrorIs(t, err, ErrEmpty)
		assert.Nil(t, data)
	})

	t.Run("Should count pending jobs", func(t *testing.T) {
		q, ctx := setupRedisQueue(t)
		n, err := q.Len(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		require.NoError(t, q.Push(ctx, []byte("a")))
		require.NoError(t, q.Push(ctx, []byte("b")))
		n, err = q.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("Should peek in dequeue order without consuming", func(t *testing.T) {
		q, ctx := setupRedisQueue(t)
		require.NoError(t, q.Push(ctx, []byte("oldest")))
		require.NoError(t, q.Push(ctx, []byte("middle")))
		require.NoError(t, q.Push(ctx, []byte("newest")))

		items, err := q.Peek(ctx, 2)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "oldest", string(items[0]))
		assert.Equal(t, "middle", string(items[1]))

		n, err := q.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n, "peek must not consume")
	})

	t.Run("Should survive interleaved producers and consumers", func(t *testing.T) {
		q, ctx := setupRedisQueue(t)
		require.NoError(t, q.Push(ctx, []byte("one")))
		got, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, "one", string(got))

		require.NoError(t, q.Push(ctx, []byte("two")))
		require.NoError(t, q.Push(ctx, []byte("three")))
		got, err = q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, "two", string(got))

		_, err = q.Pop(ctx)
		require.NoError(t, err)
		_, err = q.Pop(ctx)
		require.ErrorIs(t, err, ErrEmpty)
	})

	t.Run("Should pass health checks while the server is up", func(t *testing.T) {
		q, ctx := setupRedisQueue(t)
		require.NoError(t, q.HealthCheck(ctx))
	})

	t.Run("Should reject construction without client or name", func(t *testing.T) {
		_, err := NewRedisQueue(nil, "x")
		require.Error(t, err)
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		_, err = NewRedisQueue(client, "")
		require.Error(t, err)
	})
}
