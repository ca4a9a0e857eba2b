package tx

import (
	"context"
	"sync"
	"time"
)

// Snapshotter is implemented by in-memory stores that participate in
// MemoryRunner transactions. Snapshot returns an opaque deep copy of the
// store's state; Restore replaces the state with a previously taken copy.
type Snapshotter interface {
	Snapshot() any
	Restore(state any)
}

// defaultMemoryTxTimeout is the maximum duration for an in-memory transaction.
const defaultMemoryTxTimeout = 5 * time.Second

// MemoryRunner serializes transactions with a single mutex and rolls back by
// restoring store snapshots on failure. Suitable for a single-instance
// deployment and for tests that need real rollback semantics; production
// deployments use SQLRunner.
type MemoryRunner struct {
	mu      sync.Mutex
	stores  []Snapshotter
	timeout time.Duration
}

func NewMemoryRunner(stores ...Snapshotter) *MemoryRunner {
	return &MemoryRunner{stores: stores}
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := r.timeout
	if timeout == 0 {
		timeout = defaultMemoryTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snapshots := make([]any, len(r.stores))
	for i, s := range r.stores {
		snapshots[i] = s.Snapshot()
	}
	if err := fn(ctx); err != nil {
		for i, s := range r.stores {
			s.Restore(snapshots[i])
		}
		return err
	}
	return nil
}
