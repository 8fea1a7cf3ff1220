// Package guardrail provides input and output checks that run around a model
// turn. A guardrail inspects text and either lets it pass, or trips with
// guidance the orchestrator feeds back to the model for another attempt.
package guardrail

import (
	"context"
	"sync/atomic"
)

// Result is the outcome of one guardrail evaluation. When TripwireTriggered
// is set, Guidance carries the corrective instruction to replay to the model.
type Result struct {
	Guidance          string `json:"guidance,omitempty"`
	TripwireTriggered bool   `json:"tripwire_triggered"`
}

// Func evaluates a piece of text in the context of a run.
type Func func(ctx context.Context, text string) (Result, error)

// Guardrail pairs a named check with once-only persistence bookkeeping. When
// the same trip causes several model retries, its guidance message must reach
// the conversation history exactly once.
type Guardrail struct {
	name      string
	fn        Func
	persisted atomic.Bool
}

// New constructs a named guardrail.
func New(name string, fn Func) *Guardrail {
	return &Guardrail{name: name, fn: fn}
}

// Name returns the guardrail's identifier, used in logs and error messages.
func (g *Guardrail) Name() string { return g.name }

// Run evaluates the guardrail against the given text.
func (g *Guardrail) Run(ctx context.Context, text string) (Result, error) {
	return g.fn(ctx, text)
}

// MarkPersisted records that this guardrail's guidance has been written to
// history. The first caller gets true and performs the write; later callers
// get false and skip it.
func (g *Guardrail) MarkPersisted() bool {
	return g.persisted.CompareAndSwap(false, true)
}

// ResetPersisted clears the persistence mark for a new run.
func (g *Guardrail) ResetPersisted() {
	g.persisted.Store(false)
}
