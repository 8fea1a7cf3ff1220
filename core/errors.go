package core

import "fmt"

// ConcurrencyViolationError signals that a recipient (or a serialized tool)
// already has an in-flight call. It is recoverable by design: the runtime
// surfaces it to the delegating model as the tool's return value so the model
// can decide to wait, retry, or proceed differently. It is never fatal to
// the overall run.
type ConcurrencyViolationError struct {
	Recipient string // set for per-recipient violations
	Tool      string // set for serialized-tool violations
}

func (e *ConcurrencyViolationError) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("Tool '%s' allows only one call at a time and is currently running. Wait for it to finish before calling it again.", e.Tool)
	}
	return fmt.Sprintf("Cannot send another message to '%s' while it is processing an earlier message. Wait for its response or retry later.", e.Recipient)
}

// IncompatibleChatHistoryError is raised before any model call when a stored
// thread's dialect conflicts with the dialect the current agent's model
// requires. Replaying an incompatible history is a configuration error and
// must never be silently coerced.
type IncompatibleChatHistoryError struct {
	ThreadID string
	Stamped  Protocol // protocol recorded (or inferred) on the offending message
	Required Protocol // protocol the current model requires
}

func (e *IncompatibleChatHistoryError) Error() string {
	return fmt.Sprintf("thread %s carries %q history but the model requires %q; refusing to replay an incompatible chat history", e.ThreadID, e.Stamped, e.Required)
}

// ValidationExhaustedError is raised when a response validator or output
// guardrail keeps rejecting the model's answer past the configured attempt
// cap. It is a real failure surfaced to the caller.
type ValidationExhaustedError struct {
	Agent        string
	Attempts     int
	LastGuidance string
}

func (e *ValidationExhaustedError) Error() string {
	return fmt.Sprintf("agent %s failed response validation after %d attempts: %s", e.Agent, e.Attempts, e.LastGuidance)
}

// SaveFailedError wraps a persistence save callback failure. The orchestrator
// logs it and never propagates it: the run that produced the messages has
// already completed successfully.
type SaveFailedError struct {
	Err error
}

func (e *SaveFailedError) Error() string { return fmt.Sprintf("thread save failed: %v", e.Err) }

func (e *SaveFailedError) Unwrap() error { return e.Err }
