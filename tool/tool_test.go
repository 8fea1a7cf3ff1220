package tool

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/util"
)

// -------------------- Schema & Validation Tests --------------------

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	assert.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	// Required only includes non-pointer, non-omitempty exported fields
	req, _ := schema["required"].([]string)
	assert.ElementsMatch(t, []string{"a"}, req)
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		// Use []any to mirror possible JSON decoded schema shape
		"required": []any{"x"},
	}

	assert.NoError(t, util.ValidateParameters(map[string]any{"x": 5}, schema))

	err := util.ValidateParameters(map[string]any{}, schema)
	require.Error(t, err)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "x", vErr.Field)

	err = util.ValidateParameters(map[string]any{"x": "not-int"}, schema)
	assert.Error(t, err)
}

// -------------------- FunctionTool Tests --------------------

func sumTool(optFns ...func(o *FunctionToolOptions)) *FunctionTool {
	return NewFunctionTool(
		"calculate_sum",
		"Calculate the sum of two numbers",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"a": map[string]any{"type": "number"},
				"b": map[string]any{"type": "number"},
			},
			"required": []string{"a", "b"},
		},
		func(tc *Context, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		},
		optFns...,
	)
}

func testContext() *Context {
	return NewContext(context.Background(), "Worker", "Planner", "call_1", "run_1", nil)
}

func TestFunctionTool_Success(t *testing.T) {
	result, err := sumTool().Call(testContext(), map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationFailure(t *testing.T) {
	_, err := sumTool().Call(testContext(), map[string]any{"a": 2.0})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
	assert.Equal(t, "calculate_sum", toolErr.Tool)
}

func TestFunctionTool_ExecutionFailure(t *testing.T) {
	failing := NewFunctionTool("boom", "always fails", map[string]any{"type": "object"},
		func(tc *Context, args map[string]any) (any, error) {
			return nil, fmt.Errorf("kaput")
		})

	_, err := failing.Call(testContext(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Contains(t, toolErr.Message, "kaput")
}

func TestFunctionTool_PassesThroughToolError(t *testing.T) {
	custom := NewToolError("custom", "quota exceeded", "QUOTA")
	failing := NewFunctionTool("custom", "custom failure", map[string]any{"type": "object"},
		func(tc *Context, args map[string]any) (any, error) {
			return nil, custom
		})

	_, err := failing.Call(testContext(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "QUOTA", toolErr.Code)
}

func TestFunctionTool_Serialization(t *testing.T) {
	assert.False(t, IsSerialized(sumTool()))
	assert.True(t, IsSerialized(sumTool(func(o *FunctionToolOptions) {
		o.OneCallAtATime = true
	})))
}

// -------------------- send_message Tests --------------------

func TestSendMessageTool_SchemaEnumeratesRecipients(t *testing.T) {
	sm := NewSendMessageTool([]string{"Worker", "Reviewer"})

	params := sm.Parameters()
	props := params["properties"].(map[string]any)
	recipient := props["recipient_agent"].(map[string]any)
	assert.ElementsMatch(t, []any{"Worker", "Reviewer"}, recipient["enum"])
}

func TestSendMessageTool_DelegatesAndReturnsReply(t *testing.T) {
	sm := NewSendMessageTool([]string{"Worker"})

	tc := testContext()
	tc.SetDelegate(func(ctx context.Context, recipient, message string) (string, error) {
		assert.Equal(t, "Worker", recipient)
		assert.Equal(t, "do the thing", message)
		return "thing done", nil
	})

	result, err := sm.Call(tc, map[string]any{"recipient_agent": "Worker", "message": "do the thing"})
	require.NoError(t, err)
	assert.Equal(t, "thing done", result)
}

func TestSendMessageTool_ConcurrencyViolationBecomesResult(t *testing.T) {
	sm := NewSendMessageTool([]string{"Worker"})

	tc := testContext()
	tc.SetDelegate(func(ctx context.Context, recipient, message string) (string, error) {
		return "", &core.ConcurrencyViolationError{Recipient: "Worker"}
	})

	result, err := sm.Call(tc, map[string]any{"recipient_agent": "Worker", "message": "m"})
	require.NoError(t, err)
	assert.Contains(t, result.(string), "Cannot send another message to 'Worker'")
}

func TestSendMessageTool_OtherDelegationErrorsStayErrors(t *testing.T) {
	sm := NewSendMessageTool([]string{"Worker"})

	tc := testContext()
	tc.SetDelegate(func(ctx context.Context, recipient, message string) (string, error) {
		return "", errors.New("downstream exploded")
	})

	_, err := sm.Call(tc, map[string]any{"recipient_agent": "Worker", "message": "m"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
}

func TestSendMessageTool_RejectsUnknownRecipient(t *testing.T) {
	sm := NewSendMessageTool([]string{"Worker"})

	_, err := sm.Call(testContext(), map[string]any{"recipient_agent": "Stranger", "message": "m"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestContext_DelegateWithoutHook(t *testing.T) {
	_, err := testContext().Delegate("Worker", "m")
	assert.Error(t, err)
}
