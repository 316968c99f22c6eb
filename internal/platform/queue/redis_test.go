package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"library_lending/internal/domain/model"
	"library_lending/internal/platform/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// newTestClient connects to TEST_REDIS_ADDR or skips.
func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb, err := Connect(context.Background(), &config.Config{RedisAddr: addr}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestLoanEventQueueFIFO(t *testing.T) {
	rdb := newTestClient(t)
	ctx := context.Background()
	name := "test_loan_events_" + uuid.NewString()
	t.Cleanup(func() { rdb.Del(context.Background(), name) })
	q := NewLoanEventQueue(rdb, name)

	at := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	first := model.LoanEvent{Type: model.LoanEventBorrowed, LoanID: "l1", UserID: "u1", BookID: "b1", OccurredAt: at}
	second := model.LoanEvent{Type: model.LoanEventReturned, LoanID: "l1", UserID: "u1", BookID: "b1", OccurredAt: at.Add(time.Hour)}
	require.NoError(t, q.Publish(ctx, first))
	require.NoError(t, q.Publish(ctx, second))

	got, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, model.LoanEventBorrowed, got.Type)
	assert.True(t, at.Equal(got.OccurredAt))

	got, err = q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, model.LoanEventReturned, got.Type)

	_, err = q.Pop(ctx, time.Second)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestLocker(t *testing.T) {
	rdb := newTestClient(t)
	ctx := context.Background()
	key := "test_lock_" + uuid.NewString()
	l := NewLocker(rdb)

	token, ok, err := l.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "lock is held")

	released, err := l.Release(ctx, key, "someone-else")
	require.NoError(t, err)
	assert.False(t, released)

	released, err = l.Release(ctx, key, token)
	require.NoError(t, err)
	assert.True(t, released)

	_, ok, err = l.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	rdb.Del(ctx, key)
}
