package tool

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentrelay/core"
)

// sendMessageTool lets an agent message one of its registered recipients and
// wait for the reply. Delegation runs through the Context hook installed by
// the runtime, which enforces per-recipient concurrency.
type sendMessageTool struct {
	recipients []string
}

// NewSendMessageTool constructs the messaging tool for an agent whose
// outgoing edges point at the given recipients.
func NewSendMessageTool(recipients []string) Tool {
	return &sendMessageTool{recipients: recipients}
}

func (t *sendMessageTool) Name() string { return "send_message" }

func (t *sendMessageTool) Description() string {
	return fmt.Sprintf(
		"Send a message to another agent and wait for its response. Available recipients: %s.",
		strings.Join(t.recipients, ", "))
}

func (t *sendMessageTool) Parameters() map[string]any {
	recipientSchema := map[string]any{
		"type":        "string",
		"description": "Name of the agent to contact",
	}
	if len(t.recipients) > 0 {
		enum := make([]any, len(t.recipients))
		for i, r := range t.recipients {
			enum[i] = r
		}
		recipientSchema["enum"] = enum
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recipient_agent": recipientSchema,
			"message": map[string]any{
				"type":        "string",
				"description": "Message to deliver",
			},
		},
		"required": []string{"recipient_agent", "message"},
	}
}

func (t *sendMessageTool) allowed(recipient string) bool {
	for _, r := range t.recipients {
		if r == recipient {
			return true
		}
	}
	return false
}

// Call delegates the message and returns the recipient's final response text.
// A concurrency rejection is returned as the tool result, not as an error:
// the model reads the violation text and decides how to proceed.
func (t *sendMessageTool) Call(tc *Context, args map[string]any) (any, error) {
	recipient, ok := args["recipient_agent"].(string)
	if !ok || recipient == "" {
		return nil, NewToolError(t.Name(), "field 'recipient_agent' must be a non-empty string", "VALIDATION_ERROR")
	}
	message, ok := args["message"].(string)
	if !ok || message == "" {
		return nil, NewToolError(t.Name(), "field 'message' must be a non-empty string", "VALIDATION_ERROR")
	}
	if len(t.recipients) > 0 && !t.allowed(recipient) {
		return nil, NewToolError(t.Name(),
			fmt.Sprintf("unknown recipient %q, expected one of: %s", recipient, strings.Join(t.recipients, ", ")),
			"VALIDATION_ERROR")
	}

	tc.Logger().Info("tool.send_message", "sender", tc.Agent(), "recipient", recipient)

	reply, err := tc.Delegate(recipient, message)
	if err != nil {
		var violation *core.ConcurrencyViolationError
		if errors.As(err, &violation) {
			return violation.Error(), nil
		}
		return nil, NewToolError(t.Name(), err.Error(), "EXECUTION_ERROR")
	}
	return reply, nil
}

var _ Tool = (*sendMessageTool)(nil)
