package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookline/hookline/pkg/config"
	"github.com/hookline/hookline/pkg/logger"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	return logger.ContextWithLogger(context.Background(), logger.NewLogger(logger.TestConfig()))
}

func TestNewRedis(t *testing.T) {
	t.Run("Should connect and answer health checks", func(t *testing.T) {
		ctx := testContext(t)
		mr := miniredis.RunT(t)
		cfg := &config.RedisConfig{Host: mr.Host(), Port: mr.Port()}

		r, err := NewRedis(ctx, cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = r.Close(ctx) })

		require.NoError(t, r.HealthCheck(ctx))
		assert.NotNil(t, r.Client())
	})

	t.Run("Should fail fast when the server is unreachable", func(t *testing.T) {
		ctx := testContext(t)
		mr := miniredis.RunT(t)
		addr := mr.Host()
		port := mr.Port()
		mr.Close()

		_, err := NewRedis(ctx, &config.RedisConfig{Host: addr, Port: port})
		require.Error(t, err)
	})

	t.Run("Should require a config", func(t *testing.T) {
		_, err := NewRedis(testContext(t), nil)
		require.Error(t, err)
	})

	t.Run("Should close idempotently", func(t *testing.T) {
		ctx := testContext(t)
		mr := miniredis.RunT(t)
		r, err := NewRedis(ctx, &config.RedisConfig{Host: mr.Host(), Port: mr.Port()})
		require.NoError(t, err)
		require.NoError(t, r.Close(ctx))
		require.NoError(t, r.Close(ctx))
	})
}
