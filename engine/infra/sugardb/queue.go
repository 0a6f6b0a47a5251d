package sugardb

import (
	"context"
	"fmt"
	"sync"

	"github.com/hookline/hookline/engine/queue"
)

// Queue implements queue.Queue on the embedded store. New payloads append at
// the right end of the list and Pop takes the leftmost element, so jobs drain
// in enqueue order. The read-then-trim pop pair is serialized with a mutex;
// the embedded driver is process-local, so that lock covers all consumers.
type Queue struct {
	mu     sync.Mutex
	server *Server
	name   string
}

func NewQueue(server *Server, name string) (*Queue, error) {
	if server == nil {
		return nil, fmt.Errorf("embedded queue requires a server")
	}
	if name == "" {
		return nil, fmt.Errorf("embedded queue requires a list name")
	}
	return &Queue{server: server, name: name}, nil
}

func (q *Queue) Push(_ context.Context, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, err := q.server.db.RPush(q.name, string(payload)); err != nil {
		return fmt.Errorf("failed to push job to %q: %w", q.name, err)
	}
	return nil
}

func (q *Queue) Pop(_ context.Context) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n, err := q.server.db.LLen(q.name)
	if err != nil {
		return nil, fmt.Errorf("failed to read length of %q: %w", q.name, err)
	}
	if n == 0 {
		return nil, queue.ErrEmpty
	}
	head, err := q.server.db.LRange(q.name, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to pop job from %q: %w", q.name, err)
	}
	if len(head) == 0 {
		return nil, queue.ErrEmpty
	}
	if n == 1 {
		// LTrim cannot express "drop everything", so delete the key instead.
		if _, err := q.server.db.Del(q.name); err != nil {
			return nil, fmt.Errorf("failed to pop job from %q: %w", q.name, err)
		}
		return []byte(head[0]), nil
	}
	ok, err := q.server.db.LTrim(q.name, 1, -1)
	if err != nil {
		return nil, fmt.Errorf("failed to pop job from %q: %w", q.name, err)
	}
	if !ok {
		return nil, fmt.Errorf("failed to pop job from %q: ltrim rejected", q.name)
	}
	return []byte(head[0]), nil
}

func (q *Queue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n, err := q.server.db.LLen(q.name)
	if err != nil {
		return 0, fmt.Errorf("failed to read length of %q: %w", q.name, err)
	}
	return int64(n), nil
}

func (q *Queue) Peek(_ context.Context, limit int64) ([][]byte, error) {
	if limit <= 0 {
		return nil, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	n, err := q.server.db.LLen(q.name)
	if err != nil {
		return nil, fmt.Errorf("failed to peek %q: %w", q.name, err)
	}
	if n == 0 {
		return nil, nil
	}
	if int64(n) < limit {
		limit = int64(n)
	}
	items, err := q.server.db.LRange(q.name, 0, int(limit-1))
	if err != nil {
		return nil, fmt.Errorf("failed to peek %q: %w", q.name, err)
	}
	out := make([][]byte, len(items))
	for i, item := range items {
		out[i] = []byte(item)
	}
	return out, nil
}

func (q *Queue) HealthCheck(ctx context.Context) error {
	return q.server.HealthCheck(ctx)
}
