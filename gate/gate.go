// Package gate implements the communication gate that guarantees at most one
// in-flight delegation per recipient and per serialized tool.
//
// The gate never queues and never suspends: acquisition is an immediate
// accept/reject decision. Rejecting fast lets the calling model see the
// violation as a tool-result string and decide its own retry policy instead
// of being subjected to hidden backpressure.
package gate

import (
	"sync"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

type scope int

const (
	scopeRecipient scope = iota
	scopeTool
)

// Gate tracks in-flight delegations per recipient and in-flight executions
// of serialized tools. Distinct recipients never contend with each other.
type Gate struct {
	mu         sync.Mutex
	recipients map[string]struct{}
	tools      map[string]struct{}
	logger     logging.Logger
}

// Options configures gate construction.
type Options struct {
	Logger logging.Logger
}

// New constructs an empty gate.
func New(optFns ...func(o *Options)) *Gate {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gate{
		recipients: make(map[string]struct{}),
		tools:      make(map[string]struct{}),
		logger:     opts.Logger,
	}
}

// Acquire claims the recipient slot. It succeeds immediately when no other
// delegation to that exact recipient is in flight; otherwise it rejects
// synchronously with a *core.ConcurrencyViolationError naming the recipient.
func (g *Gate) Acquire(recipient string) (*Token, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.recipients[recipient]; busy {
		g.logger.Debug("gate.acquire.rejected", "recipient", recipient)
		return nil, &core.ConcurrencyViolationError{Recipient: recipient}
	}
	g.recipients[recipient] = struct{}{}
	return &Token{gate: g, scope: scopeRecipient, key: recipient}, nil
}

// AcquireTool claims the slot of a tool marked one-call-at-a-time. Tools not
// marked that way never touch the gate and may run arbitrarily concurrently.
func (g *Gate) AcquireTool(toolName string) (*Token, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.tools[toolName]; busy {
		g.logger.Debug("gate.acquire_tool.rejected", "tool", toolName)
		return nil, &core.ConcurrencyViolationError{Tool: toolName}
	}
	g.tools[toolName] = struct{}{}
	return &Token{gate: g, scope: scopeTool, key: toolName}, nil
}

// InFlight reports whether a delegation to recipient currently holds the
// gate. Primarily useful in tests.
func (g *Gate) InFlight(recipient string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.recipients[recipient]
	return busy
}

// Token represents a held gate slot. Release is idempotent and must be
// called on every exit path of the guarded operation.
type Token struct {
	gate  *Gate
	scope scope
	key   string
	once  sync.Once
}

// Release frees the slot. Calling it more than once is harmless.
func (t *Token) Release() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.gate.mu.Lock()
		defer t.gate.mu.Unlock()
		switch t.scope {
		case scopeRecipient:
			delete(t.gate.recipients, t.key)
		case scopeTool:
			delete(t.gate.tools, t.key)
		}
	})
}
