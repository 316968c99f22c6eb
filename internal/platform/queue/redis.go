package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"library_lending/internal/domain/model"
	"library_lending/internal/platform/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrEmpty is returned by Pop when no event arrived before the timeout.
var ErrEmpty = errors.New("queue: no event")

// Connect opens and pings a Redis client from the configuration.
func Connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("could not connect to redis: %w", err)
	}
	log.Info("Redis connected", zap.String("addr", cfg.RedisAddr))
	return rdb, nil
}

// LoanEventQueue is a Redis list of JSON encoded loan events. Producers push
// on the left and consumers pop from the right, so delivery is FIFO.
type LoanEventQueue struct {
	rdb  redis.Cmdable
	name string
}

func NewLoanEventQueue(rdb redis.Cmdable, name string) *LoanEventQueue {
	return &LoanEventQueue{rdb: rdb, name: name}
}

func (q *LoanEventQueue) Publish(ctx context.Context, event model.LoanEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal loan event: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("push loan event to %s: %w", q.name, err)
	}
	return nil
}

// Requeue puts an event back at the consumer end of the queue.
func (q *LoanEventQueue) Requeue(ctx context.Context, event model.LoanEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal loan event: %w", err)
	}
	return q.rdb.RPush(ctx, q.name, payload).Err()
}

// Pop blocks for up to timeout waiting for the next event.
func (q *LoanEventQueue) Pop(ctx context.Context, timeout time.Duration) (*model.LoanEvent, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		return nil, err
	}
	// res is [queueName, value]
	if len(res) < 2 || res[1] == "" {
		return nil, ErrEmpty
	}

	var event model.LoanEvent
	if err := json.Unmarshal([]byte(res[1]), &event); err != nil {
		return nil, fmt.Errorf("decode loan event: %w", err)
	}
	return &event, nil
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// Locker is a single-key Redis lock (SET NX PX plus compare-and-delete).
type Locker struct {
	rdb redis.Cmdable
}

func NewLocker(rdb redis.Cmdable) *Locker {
	return &Locker{rdb: rdb}
}

// Acquire returns the token that owns key, or ok=false if someone else holds it.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	token = uuid.NewString()
	ok, err = l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release reports false when the lock had already expired or changed hands.
func (l *Locker) Release(ctx context.Context, key, token string) (bool, error) {
	deleted, err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("release lock %s: %w", key, err)
	}
	return deleted == 1, nil
}
