package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisQueue stores jobs in a Redis list. LPUSH at the head and RPOP at the
// tail give FIFO draining, and both operations are atomic server-side, so any
// number of evaluators and workers can share one list.
type RedisQueue struct {
	client redis.UniversalClient
	name   string
}

func NewRedisQueue(client redis.UniversalClient, name string) (*RedisQueue, error) {
	if client == nil {
		return nil, fmt.Errorf("redis queue requires a client")
	}
	if name == "" {
		return nil, fmt.Errorf("redis queue requires a list name")
	}
	return &RedisQueue{client: client, name: name}, nil
}

// Name returns the backing list key.
func (q *RedisQueue) Name() string {
	return q.name
}

func (q *RedisQueue) Push(ctx context.Context, payload []byte) error {
	if err := q.client.LPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("failed to push job to %q: %w", q.name, err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context) ([]byte, error) {
	data, err := q.client.RPop(ctx, q.name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop job from %q: %w", q.name, err)
	}
	return data, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read length of %q: %w", q.name, err)
	}
	return n, nil
}

// Peek reads the tail slice of the list and reverses it so the first element
// returned is the next one a worker would pop.
func (q *RedisQueue) Peek(ctx context.Context, limit int64) ([][]byte, error) {
	if limit <= 0 {
		return nil, nil
	}
	items, err := q.client.LRange(ctx, q.name, -limit, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to peek %q: %w", q.name, err)
	}
	out := make([][]byte, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		out = append(out, []byte(items[i]))
	}
	return out, nil
}

func (q *RedisQueue) HealthCheck(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis queue unreachable: %w", err)
	}
	return nil
}
