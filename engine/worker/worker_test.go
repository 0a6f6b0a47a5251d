package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookline/hookline/engine/component"
	"github.com/hookline/hookline/engine/core"
	"github.com/hookline/hookline/engine/queue"
	"github.com/hookline/hookline/engine/schema"
)

type memQueue struct {
	mu    sync.Mutex
	items [][]byte
}

func (q *memQueue) Push(_ context.Context, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, payload)
	return nil
}

func (q *memQueue) Pop(context.Context) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, queue.ErrEmpty
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, nil
}

func (q *memQueue) Len(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

func (q *memQueue) Peek(_ context.Context, limit int64) ([][]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := int64(len(q.items))
	if limit < n {
		n = limit
	}
	out := make([][]byte, n)
	copy(out, q.items[:n])
	return out, nil
}

func (q *memQueue) HealthCheck(context.Context) error { return nil }

func (q *memQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// recorder tracks component executions across goroutines.
type recorder struct {
	mu           sync.Mutex
	actionInputs []core.Params
	reactInputs  []core.Params
	reactResults []*component.ActionResponse
}

func (r *recorder) sawAction(input core.Params) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actionInputs = append(r.actionInputs, input)
}

func (r *recorder) sawReaction(input core.Params, result *component.ActionResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reactInputs = append(r.reactInputs, input)
	r.reactResults = append(r.reactResults, result)
}

func (r *recorder) actionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actionInputs)
}

func (r *recorder) reactionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reactInputs)
}

type stubAction struct {
	resp *component.ActionResponse
	err  error
}

func (a *stubAction) Execute(context.Context) (*component.ActionResponse, error) {
	return a.resp, a.err
}

type stubReaction struct {
	rec  *recorder
	cfg  core.Params
	resp *component.ReactionResponse
	err  error
}

func (r *stubReaction) Execute(_ context.Context, result *component.ActionResponse) (*component.ReactionResponse, error) {
	r.rec.sawReaction(r.cfg, result)
	return r.resp, r.err
}

// testHarness bundles a registry whose echo action and sink reaction record
// what they were built and executed with.
type testHarness struct {
	registry    *component.Registry
	rec         *recorder
	actionResp  *component.ActionResponse
	actionErr   error
	reactionErr error
	reactionOK  bool
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		rec:        &recorder{},
		actionResp: &component.ActionResponse{Success: true, Fields: core.Params{"echoed": "yes"}},
		reactionOK: true,
	}
	reg := component.NewRegistry()
	require.NoError(t, reg.Register(&component.Definition{
		Name: "echo",
		Kind: core.KindAction,
		ConfigSchema: schema.Schema{
			"message_id": {Type: schema.TypeString, Required: true},
			"subject":    {Type: schema.TypeString, Default: "none"},
		},
		NewAction: func(cfg core.Params) (component.Action, error) {
			h.rec.sawAction(cfg)
			return &stubAction{resp: h.actionResp, err: h.actionErr}, nil
		},
	}))
	require.NoError(t, reg.Register(&component.Definition{
		Name: "sink",
		Kind: core.KindReaction,
		ConfigSchema: schema.Schema{
			"channel_id": {Type: schema.TypeString, Required: true},
		},
		NewReaction: func(cfg core.Params) (component.Reaction, error) {
			var resp *component.ReactionResponse
			if h.reactionErr == nil {
				resp = &component.ReactionResponse{Success: h.reactionOK}
			}
			return &stubReaction{rec: h.rec, cfg: cfg, resp: resp, err: h.reactionErr}, nil
		},
	}))
	reg.Freeze()
	h.registry = reg
	return h
}

func startPool(t *testing.T, reg *component.Registry, q queue.Queue) {
	t.Helper()
	pool := NewPool(Config{
		Registry:  reg,
		Queue:     q,
		Count:     1,
		IdleSleep: 5 * time.Millisecond,
	})
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(pool.Stop)
}

func encodeJob(t *testing.T, job *queue.Job) []byte {
	t.Helper()
	payload, err := job.Encode()
	require.NoError(t, err)
	return payload
}

func mailJob() *queue.Job {
	return &queue.Job{
		Trigger: queue.JobTrigger{Name: "mail_received"},
		Action: queue.JobStep{
			Name:   "echo",
			Params: core.Params{"message_id": "m-1"},
			Config: core.Params{"token": "A-TOK", "subject": "from-config"},
		},
		Reaction: queue.JobStep{
			Name:   "sink",
			Params: core.Params{"channel_id": "chan-1", "message_id": "m-1"},
			Config: core.Params{"token": "R-TOK", "channel_id": "chan-1"},
		},
		EventData: core.Params{"message_id": "m-1"},
	}
}

func TestPool(t *testing.T) {
	t.Run("Should run a job end to end", func(t *testing.T) {
		h := newHarness(t)
		q := &memQueue{}
		require.NoError(t, q.Push(context.Background(), encodeJob(t, mailJob())))
		startPool(t, h.registry, q)

		require.Eventually(t, func() bool { return h.rec.reactionCount() == 1 }, time.Second, 5*time.Millisecond)
		assert.Zero(t, q.size())

		h.rec.mu.Lock()
		defer h.rec.mu.Unlock()
		actionInput := h.rec.actionInputs[0]
		assert.Equal(t, "m-1", actionInput["message_id"])
		assert.Equal(t, "A-TOK", actionInput["token"])
		assert.Equal(t, "from-config", actionInput["subject"])

		reactInput := h.rec.reactInputs[0]
		assert.Equal(t, "chan-1", reactInput["channel_id"])
		assert.Equal(t, "R-TOK", reactInput["token"])
		assert.Same(t, h.actionResp, h.rec.reactResults[0])
	})

	t.Run("Should let event params override static options", func(t *testing.T) {
		h := newHarness(t)
		q := &memQueue{}
		job := mailJob()
		job.Action.Params["subject"] = "from-event"
		require.NoError(t, q.Push(context.Background(), encodeJob(t, job)))
		startPool(t, h.registry, q)

		require.Eventually(t, func() bool { return h.rec.actionCount() == 1 }, time.Second, 5*time.Millisecond)
		h.rec.mu.Lock()
		defer h.rec.mu.Unlock()
		assert.Equal(t, "from-event", h.rec.actionInputs[0]["subject"])
	})

	t.Run("Should drop malformed payloads and keep draining", func(t *testing.T) {
		h := newHarness(t)
		q := &memQueue{}
		ctx := context.Background()
		require.NoError(t, q.Push(ctx, []byte("not json at all")))
		require.NoError(t, q.Push(ctx, encodeJob(t, mailJob())))
		startPool(t, h.registry, q)

		require.Eventually(t, func() bool { return h.rec.reactionCount() == 1 }, time.Second, 5*time.Millisecond)
		assert.Zero(t, q.size())
	})

	t.Run("Should discard jobs naming unknown components", func(t *testing.T) {
		h := newHarness(t)
		q := &memQueue{}
		job := mailJob()
		job.Action.Name = "no_such_action"
		require.NoError(t, q.Push(context.Background(), encodeJob(t, job)))
		startPool(t, h.registry, q)

		require.Eventually(t, func() bool { return q.size() == 0 }, time.Second, 5*time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, h.rec.actionCount())
		assert.Zero(t, h.rec.reactionCount())
	})

	t.Run("Should reject a job whose action input fails validation", func(t *testing.T) {
		h := newHarness(t)
		q := &memQueue{}
		job := mailJob()
		delete(job.Action.Params, "message_id")
		require.NoError(t, q.Push(context.Background(), encodeJob(t, job)))
		startPool(t, h.registry, q)

		require.Eventually(t, func() bool { return q.size() == 0 }, time.Second, 5*time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, h.rec.actionCount())
	})

	t.Run("Should end silently when the action filters the event out", func(t *testing.T) {
		h := newHarness(t)
		h.actionResp = nil
		q := &memQueue{}
		require.NoError(t, q.Push(context.Background(), encodeJob(t, mailJob())))
		startPool(t, h.registry, q)

		require.Eventually(t, func() bool { return h.rec.actionCount() == 1 }, time.Second, 5*time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, h.rec.reactionCount())
		assert.Zero(t, q.size())
	})

	t.Run("Should validate the reaction input before constructing it", func(t *testing.T) {
		h := newHarness(t)
		q := &memQueue{}
		job := mailJob()
		delete(job.Reaction.Params, "channel_id")
		delete(job.Reaction.Config, "channel_id")
		require.NoError(t, q.Push(context.Background(), encodeJob(t, job)))
		startPool(t, h.registry, q)

		require.Eventually(t, func() bool { return h.rec.actionCount() == 1 }, time.Second, 5*time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, h.rec.reactionCount())
	})

	t.Run("Should consume a failing job exactly once", func(t *testing.T) {
		h := newHarness(t)
		h.reactionErr = errors.New("downstream rejected the call")
		q := &memQueue{}
		require.NoError(t, q.Push(context.Background(), encodeJob(t, mailJob())))
		startPool(t, h.registry, q)

		require.Eventually(t, func() bool { return h.rec.reactionCount() == 1 }, time.Second, 5*time.Millisecond)
		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, 1, h.rec.reactionCount())
		assert.Zero(t, q.size())
	})

	t.Run("Should drain jobs in enqueue order", func(t *testing.T) {
		h := newHarness(t)
		q := &memQueue{}
		ctx := context.Background()
		for _, id := range []string{"m-1", "m-2", "m-3"} {
			job := mailJob()
			job.Action.Params["message_id"] = id
			require.NoError(t, q.Push(ctx, encodeJob(t, job)))
		}
		startPool(t, h.registry, q)

		require.Eventually(t, func() bool { return h.rec.actionCount() == 3 }, time.Second, 5*time.Millisecond)
		h.rec.mu.Lock()
		defer h.rec.mu.Unlock()
		var ids []string
		for _, input := range h.rec.actionInputs {
			ids = append(ids, input["message_id"].(string))
		}
		assert.Equal(t, []string{"m-1", "m-2", "m-3"}, ids)
	})

	t.Run("Should stop workers and reject a second start", func(t *testing.T) {
		h := newHarness(t)
		pool := NewPool(Config{
			Registry:  h.registry,
			Queue:     &memQueue{},
			Count:     2,
			IdleSleep: 5 * time.Millisecond,
		})
		require.NoError(t, pool.Start(context.Background()))
		require.Error(t, pool.Start(context.Background()))
		done := make(chan struct{})
		go func() {
			pool.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("pool did not stop")
		}
	})
}
