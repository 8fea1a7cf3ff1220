package stream

import (
	"context"
	"sync"

	"github.com/hupe1980/agentrelay/core"
)

// Result is an explicit single-assignment future holding the terminal
// outcome of one logical run. It settles exactly once, with a value or an
// error, independent of whether any consumer still iterates the event
// stream.
//
// Adopt rebinds a Result to another one so that exactly one terminal signal
// is ever observed: when the orchestrator internally restarts a turn with a
// new stream, external callers keep waiting on the original Result and
// transparently receive the replacement's outcome.
type Result struct {
	mu      sync.Mutex
	done    chan struct{}
	value   *core.RunResult
	err     error
	settled bool
	forward *Result
}

// NewResult creates an unsettled Result.
func NewResult() *Result {
	return &Result{done: make(chan struct{})}
}

// Settle records the terminal outcome. The first call wins; later calls and
// calls after adoption are ignored and report false.
func (r *Result) Settle(value *core.RunResult, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settled || r.forward != nil {
		return false
	}
	r.value = value
	r.err = err
	r.settled = true
	close(r.done)
	return true
}

// Adopt forwards this Result's completion to other: waiters blocked on r are
// released to wait on other instead. Adopting an already settled Result is a
// no-op and reports false.
func (r *Result) Adopt(other *Result) bool {
	if other == nil || other == r {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.settled || r.forward != nil {
		return false
	}
	r.forward = other
	close(r.done) // wake waiters so they follow the forward link
	return true
}

// Settled reports whether a terminal outcome is observable right now,
// following adoption links.
func (r *Result) Settled() bool {
	cur := r
	for {
		cur.mu.Lock()
		settled, fwd := cur.settled, cur.forward
		cur.mu.Unlock()
		if fwd != nil {
			cur = fwd
			continue
		}
		return settled
	}
}

// Wait blocks until the Result (or whatever it was adopted into) settles,
// or ctx is cancelled.
func (r *Result) Wait(ctx context.Context) (*core.RunResult, error) {
	cur := r
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-cur.done:
		}
		cur.mu.Lock()
		fwd := cur.forward
		value, err := cur.value, cur.err
		cur.mu.Unlock()
		if fwd != nil {
			cur = fwd
			continue
		}
		return value, err
	}
}
