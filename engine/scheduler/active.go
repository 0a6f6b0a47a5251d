package scheduler

import (
	"context"
	"sort"
	"sync"

	"github.com/hookline/hookline/engine/core"
)

// handle tracks one running evaluator: cancel stops its loop, done closes
// once the goroutine has unwound.
type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// activeTable is the supervisor's record of live evaluators keyed by area
// ID. Mutation happens only from the reconcile pass, so the lock mostly
// guards concurrent readers.
type activeTable struct {
	mu      sync.RWMutex
	entries map[core.ID]*handle
}

func newActiveTable() *activeTable {
	return &activeTable{entries: make(map[core.ID]*handle)}
}

// insert claims the slot for id. It returns false when an evaluator is
// already registered, which upholds the one-evaluator-per-area invariant
// even if two passes ever overlapped.
func (t *activeTable) insert(id core.ID, h *handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[id]; exists {
		return false
	}
	t.entries[id] = h
	return true
}

// remove cancels the evaluator for id and blocks until its goroutine has
// exited, so a re-added area can never race its own predecessor.
func (t *activeTable) remove(id core.ID) bool {
	t.mu.Lock()
	h, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	h.cancel()
	<-h.done
	return true
}

func (t *activeTable) contains(id core.ID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[id]
	return ok
}

func (t *activeTable) ids() []core.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]core.ID, 0, len(t.entries))
	for id := range t.entries {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// drain cancels every evaluator at once, then waits for all of them.
func (t *activeTable) drain() {
	t.mu.Lock()
	handles := make([]*handle, 0, len(t.entries))
	for id, h := range t.entries {
		handles = append(handles, h)
		delete(t.entries, id)
	}
	t.mu.Unlock()
	for _, h := range handles {
		h.cancel()
	}
	for _, h := range handles {
		<-h.done
	}
}
