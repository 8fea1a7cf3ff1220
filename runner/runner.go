package runner

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/gate"
	"github.com/hupe1980/agentrelay/internal/util"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/protocol"
	"github.com/hupe1980/agentrelay/stream"
	"github.com/hupe1980/agentrelay/thread"
)

const (
	// DefaultMaxValidationAttempts bounds validator / output-guardrail retries
	// per run.
	DefaultMaxValidationAttempts = 3
	// DefaultMaxToolIterations bounds model->tool->model round trips per
	// attempt.
	DefaultMaxToolIterations = 10
	// DefaultStreamBuffer is the event channel capacity of new streams.
	DefaultStreamBuffer = 64
)

// Options configures runner construction.
type Options struct {
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
	// Hooks, when set, persist the full flat log at the end of every
	// top-level run.
	Hooks *thread.Hooks
	// MaxValidationAttempts overrides DefaultMaxValidationAttempts for agents
	// that do not set their own cap.
	MaxValidationAttempts int
	// MaxToolIterations overrides DefaultMaxToolIterations.
	MaxToolIterations int
	// StreamBuffer overrides DefaultStreamBuffer.
	StreamBuffer int
}

// Runner executes runs against a static agent graph backed by a shared
// thread store and communication gate. A Runner is safe for concurrent use.
type Runner struct {
	graph  *agent.Graph
	store  *thread.Store
	gate   *gate.Gate
	hooks  *thread.Hooks
	logger logging.Logger
	opts   Options
}

// New constructs a runner over the given graph, store and gate.
func New(graph *agent.Graph, store *thread.Store, g *gate.Gate, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Logger:                logging.NoOpLogger{},
		MaxValidationAttempts: DefaultMaxValidationAttempts,
		MaxToolIterations:     DefaultMaxToolIterations,
		StreamBuffer:          DefaultStreamBuffer,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxValidationAttempts <= 0 {
		opts.MaxValidationAttempts = DefaultMaxValidationAttempts
	}
	if opts.MaxToolIterations <= 0 {
		opts.MaxToolIterations = DefaultMaxToolIterations
	}
	if opts.StreamBuffer <= 0 {
		opts.StreamBuffer = DefaultStreamBuffer
	}
	return &Runner{
		graph:  graph,
		store:  store,
		gate:   g,
		hooks:  opts.Hooks,
		logger: opts.Logger,
		opts:   opts,
	}
}

// Store exposes the backing thread store, mainly for inspection and tests.
func (r *Runner) Store() *thread.Store { return r.store }

// GetResponse sends a user message to the named recipient agent and blocks
// until the final response. An empty recipient targets the graph's entry
// point. Events are drained internally.
func (r *Runner) GetResponse(ctx context.Context, recipient, message string) (*core.RunResult, error) {
	s, err := r.GetResponseStream(ctx, recipient, message)
	if err != nil {
		return nil, err
	}
	go func() {
		for range s.Events() {
		}
	}()
	return s.Wait(ctx)
}

// GetResponseStream sends a user message to the named recipient agent and
// returns the merged event stream of the run. The recipient's own events are
// delivered with priority; events of agents it delegates to are interleaved
// first-ready. Gate rejection and incompatible history are reported
// synchronously, before any stream exists.
func (r *Runner) GetResponseStream(ctx context.Context, recipient, message string) (*stream.Stream, error) {
	if recipient == "" {
		entry, err := r.graph.EntryPoint()
		if err != nil {
			return nil, err
		}
		recipient = entry
	}
	ag, err := r.graph.Get(recipient)
	if err != nil {
		return nil, err
	}
	if message == "" {
		return nil, fmt.Errorf("message must not be empty")
	}

	// The user thread replays against this agent's model; conflicting dialect
	// stamps fail here, before any model call or stream exists.
	required := ag.Model.Info().Dialect
	history := r.store.Conversation(ag.Name, "")
	if err := protocol.ValidateProtocol(history, core.ThreadID("", ag.Name), required); err != nil {
		return nil, err
	}

	token, err := r.gate.Acquire(ag.Name)
	if err != nil {
		return nil, err
	}

	runID := util.NewID()
	primary := stream.New(r.opts.StreamBuffer)
	secondary := stream.New(r.opts.StreamBuffer)
	merged := stream.Merge(ctx, primary, secondary)

	// A detached consumer must not stall the producers: unwire both sources
	// so their sends fail fast while the run finishes in the background.
	go func() {
		<-merged.Done()
		primary.Close()
		secondary.Close()
	}()

	emitPrimary := func(ev stream.Event) { _ = primary.Send(ctx, ev) }
	emitSecondary := func(ev stream.Event) { _ = secondary.Send(ctx, ev) }

	go func() {
		defer token.Release()

		if r.hooks != nil {
			r.hooks.OnRunStart(runID)
		}
		res, runErr := r.executeRun(ctx, runID, ag, "", message, emitPrimary, emitSecondary)
		secondary.CloseSend()

		// Persist before settling so a caller returning from Wait observes a
		// completed save.
		if r.hooks != nil {
			r.hooks.OnRunEnd(runID, r.store.AllMessages())
		}

		primary.Result().Settle(res, runErr)
		primary.CloseSend()
	}()

	return merged, nil
}
