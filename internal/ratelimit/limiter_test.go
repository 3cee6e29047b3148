package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisLimiter(t *testing.T, cfg *Config) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := NewRedisLimiter(client, cfg)
	require.NoError(t, err)
	return limiter, mr
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	limiter, mr := newMiniredisLimiter(t, &Config{Requests: 2, Window: time.Minute, KeyPrefix: "rl"})
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		decision, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, int64(i), decision.Count)
	}

	decision, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, int64(3), decision.Count)
	assert.Greater(t, decision.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, decision.RetryAfter, time.Minute)

	other, err := limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	assert.True(t, mr.Exists("rl:10.0.0.1"))

	mr.FastForward(time.Minute + time.Second)

	decision, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, int64(1), decision.Count)
}

func TestRedisLimiter_RedisErrors(t *testing.T) {
	cfg := &Config{Requests: 1, Window: time.Minute, KeyPrefix: "rl"}

	tests := []struct {
		name  string
		setup func(mock redismock.ClientMock)
	}{
		{
			name: "incr fails",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectIncr("rl:k").SetErr(errors.New("connection refused"))
			},
		},
		{
			name: "pexpire fails",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectIncr("rl:k").SetVal(1)
				mock.ExpectPExpire("rl:k", time.Minute).SetErr(errors.New("connection reset"))
			},
		},
		{
			name: "pttl fails",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectIncr("rl:k").SetVal(5)
				mock.ExpectPTTL("rl:k").SetErr(errors.New("timeout"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := redismock.NewClientMock()
			tt.setup(mock)

			limiter, err := NewRedisLimiter(client, cfg)
			require.NoError(t, err)

			_, err = limiter.Allow(context.Background(), "k")
			assert.Error(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRedisLimiter_RestoresMissingExpiry(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectIncr("rl:k").SetVal(3)
	mock.ExpectPTTL("rl:k").SetVal(-1)
	mock.ExpectPExpire("rl:k", time.Minute).SetVal(true)

	limiter, err := NewRedisLimiter(client, &Config{Requests: 1, Window: time.Minute, KeyPrefix: "rl"})
	require.NoError(t, err)

	decision, err := limiter.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, time.Minute, decision.RetryAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRedisLimiter_Validation(t *testing.T) {
	client, _ := redismock.NewClientMock()

	_, err := NewRedisLimiter(nil, DefaultConfig())
	assert.Error(t, err)

	_, err = NewRedisLimiter(client, &Config{Requests: 0, Window: time.Minute})
	assert.Error(t, err)

	_, err = NewRedisLimiter(client, &Config{Requests: 1, Window: 0})
	assert.Error(t, err)

	limiter, err := NewRedisLimiter(client, nil)
	require.NoError(t, err)
	assert.Equal(t, "ratelimit:validate:1.2.3.4", limiter.key("1.2.3.4"))
}
