// Package agentrelay provides a high-level façade over the runner and its
// services (thread store, communication gate, persistence hooks & logging)
// enabling rapid construction of communicating agent systems. Most
// applications interact with this package by:
//  1. Building an agent.Graph (agents plus directed communication edges)
//  2. Creating an AgentRelay via New() (optionally wiring persistence)
//  3. Sending user messages synchronously (GetResponse) or as an event
//     stream (GetResponseStream)
//
// The façade delegates orchestration to runner.Runner while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply persistence callbacks
// and a structured logger.
package agentrelay

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/gate"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/runner"
	"github.com/hupe1980/agentrelay/stream"
	"github.com/hupe1980/agentrelay/thread"
)

// Options configures the AgentRelay instance.
type Options struct {
	// LoadCallback and SaveCallback wire external persistence. Both must be
	// set together or left unset: loading happens once at construction, saving
	// at the end of every run.
	LoadCallback thread.LoadFunc
	SaveCallback thread.SaveFunc

	// MaxValidationAttempts caps validator-driven retries per run (0 = runner
	// default).
	MaxValidationAttempts int

	// StreamBuffer sets the event channel capacity for run streams (0 =
	// runner default).
	StreamBuffer int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentRelay is the high-level façade aggregating the agent graph, thread
// store, communication gate and runner.
type AgentRelay struct {
	opts   Options
	graph  *agent.Graph
	store  *thread.Store
	gate   *gate.Gate
	runner *runner.Runner
}

// New creates an AgentRelay over a prepared communication graph. When
// persistence callbacks are configured, stored history is loaded immediately
// and the full flat log is saved after every run.
func New(graph *agent.Graph, optFns ...func(o *Options)) (*AgentRelay, error) {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if (opts.LoadCallback == nil) != (opts.SaveCallback == nil) {
		return nil, fmt.Errorf("load and save callbacks must be configured together")
	}

	var hooks *thread.Hooks
	if opts.LoadCallback != nil {
		var err error
		hooks, err = thread.NewHooks(opts.LoadCallback, opts.SaveCallback, opts.Logger)
		if err != nil {
			return nil, err
		}
	}

	store := thread.NewStore(func(o *thread.Options) {
		if hooks != nil {
			o.Load = hooks.Load
		}
		o.Logger = opts.Logger
	})

	g := gate.New(func(o *gate.Options) {
		o.Logger = opts.Logger
	})

	r := runner.New(graph, store, g, func(o *runner.Options) {
		o.Logger = opts.Logger
		o.Hooks = hooks
		o.MaxValidationAttempts = opts.MaxValidationAttempts
		o.StreamBuffer = opts.StreamBuffer
	})

	return &AgentRelay{
		opts:   opts,
		graph:  graph,
		store:  store,
		gate:   g,
		runner: r,
	}, nil
}

// GetResponse sends a user message to the named recipient agent and blocks
// until its final response. An empty recipient targets the graph's entry
// point.
func (a *AgentRelay) GetResponse(ctx context.Context, recipient, message string) (*core.RunResult, error) {
	return a.runner.GetResponse(ctx, recipient, message)
}

// GetResponseStream sends a user message and returns the merged run event
// stream. Consumers range over Events and retrieve the terminal outcome via
// Wait, which works even after abandoning the iteration early.
func (a *AgentRelay) GetResponseStream(ctx context.Context, recipient, message string) (*stream.Stream, error) {
	return a.runner.GetResponseStream(ctx, recipient, message)
}

// Messages returns a snapshot of the full flat thread log.
func (a *AgentRelay) Messages() []core.Message {
	return a.store.AllMessages()
}

// Conversation returns the ordered view of the bidirectional thread between
// an agent and a caller (empty caller means the human user).
func (a *AgentRelay) Conversation(agent, callerAgent string) []core.Message {
	return a.store.Conversation(agent, callerAgent)
}
