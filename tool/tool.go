// Package tool implements the function calling subsystem that lets agents
// invoke structured capabilities with schema validated arguments, consistent
// error handling and rich metadata for LLM guidance.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentrelay/internal/util"
	"github.com/hupe1980/agentrelay/logging"
)

// Tool defines the interface for extending agent capabilities with external
// functions.
//
// Tools are registered with agents to enable function calling, allowing
// agents to perform actions beyond text generation such as API calls,
// calculations, or message delegation to other agents.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe if used concurrently
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and
	// how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with structured arguments and a Context.
	// Arguments are parsed from JSON and validated against the tool's schema.
	Call(toolCtx *Context, args map[string]any) (any, error)
}

// Serialized marks tools that admit at most one concurrent execution. When a
// model requests several calls to such a tool in one turn, only the first
// proceeds; the rest receive a concurrency rejection as their result.
type Serialized interface {
	OneCallAtATime() bool
}

// IsSerialized reports whether a tool demands serialized execution.
func IsSerialized(t Tool) bool {
	s, ok := t.(Serialized)
	return ok && s.OneCallAtATime()
}

// DelegateFunc forwards a message to another agent on behalf of the calling
// agent and returns the recipient's final text response.
type DelegateFunc func(ctx context.Context, recipient, message string) (string, error)

// Context carries per-call orchestration state into a tool execution: the
// identities involved, correlation ids and the delegation hook the runtime
// installs for inter-agent messaging.
type Context struct {
	ctx         context.Context
	agent       string
	callerAgent string
	callID      string
	runID       string
	logger      logging.Logger
	delegate    DelegateFunc
}

// NewContext builds a tool execution context.
func NewContext(ctx context.Context, agent, callerAgent, callID, runID string, logger logging.Logger) *Context {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Context{
		ctx:         ctx,
		agent:       agent,
		callerAgent: callerAgent,
		callID:      callID,
		runID:       runID,
		logger:      logger,
	}
}

// Context returns the underlying context for cancellation and deadlines.
func (c *Context) Context() context.Context { return c.ctx }

// Agent returns the name of the agent executing the tool.
func (c *Context) Agent() string { return c.agent }

// CallerAgent returns the name of the entity that messaged the executing agent.
func (c *Context) CallerAgent() string { return c.callerAgent }

// CallID returns the function call identifier correlating the model request
// with this execution.
func (c *Context) CallID() string { return c.callID }

// RunID returns the identifier of the run this call belongs to.
func (c *Context) RunID() string { return c.runID }

// Logger returns the logger scoped to this call.
func (c *Context) Logger() logging.Logger { return c.logger }

// SetDelegate installs the delegation hook. The runtime calls this before
// tool execution; tools should not.
func (c *Context) SetDelegate(fn DelegateFunc) { c.delegate = fn }

// Delegate forwards a message to another agent and blocks until its final
// response. Returns an error when no delegation hook is installed.
func (c *Context) Delegate(recipient, message string) (string, error) {
	if c.delegate == nil {
		return "", fmt.Errorf("no delegation hook installed")
	}
	return c.delegate(c.ctx, recipient, message)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
