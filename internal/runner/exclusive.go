package runner

import (
	"context"
	"sync"

	"github.com/Wimboro/finmail/internal/pipeline"
)

// AccountRunner executes one pipeline run for an account.
type AccountRunner interface {
	Run(ctx context.Context, account string) (pipeline.Result, error)
}

// Exclusive serializes runs across triggers. The process endpoint and the
// webhook job worker share the same mailboxes and sheet; two overlapping
// runs would each snapshot before the other commits and double-append the
// same transactions.
type Exclusive struct {
	mu    sync.Mutex
	inner AccountRunner
}

// NewExclusive wraps a runner so at most one run executes at a time.
func NewExclusive(inner AccountRunner) *Exclusive {
	return &Exclusive{inner: inner}
}

// Run executes the wrapped runner, waiting for any in-flight run to finish.
func (e *Exclusive) Run(ctx context.Context, account string) (pipeline.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inner.Run(ctx, account)
}

var _ AccountRunner = (*Exclusive)(nil)
