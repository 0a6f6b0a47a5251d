package queue

import (
	"context"
	"errors"
)

// ErrEmpty reports a Pop against a queue with no pending jobs. Consumers
// treat it as a signal to idle, not as a failure.
var ErrEmpty = errors.New("queue is empty")

// Queue is the FIFO job pipe between evaluators and workers. Jobs drain in
// the order they were enqueued. Both calls return immediately; Pop never
// blocks waiting for work. Implementations must be safe for concurrent
// producers and consumers.
type Queue interface {
	Push(ctx context.Context, payload []byte) error
	Pop(ctx context.Context) ([]byte, error)
	Len(ctx context.Context) (int64, error)
	// Peek returns up to limit pending payloads in dequeue order without
	// removing them.
	Peek(ctx context.Context, limit int64) ([][]byte, error)
	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error
}
