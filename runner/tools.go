package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/util"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/protocol"
	"github.com/hupe1980/agentrelay/stream"
	"github.com/hupe1980/agentrelay/tool"
)

// toolset indexes an agent's effective tools by name.
type toolset map[string]tool.Tool

// toolset assembles the agent's declared tools plus the messaging tool when
// the graph gives the agent outgoing edges.
func (r *Runner) toolset(ag *agent.Agent) toolset {
	ts := make(toolset, len(ag.Tools)+1)
	for _, t := range ag.Tools {
		ts[t.Name()] = t
	}
	if recipients := r.graph.Recipients(ag.Name); len(recipients) > 0 {
		sm := tool.NewSendMessageTool(recipients)
		ts[sm.Name()] = sm
	}
	return ts
}

// toolDefinitions renders a toolset into model-facing declarations in stable
// name order.
func toolDefinitions(ts toolset) []model.ToolDefinition {
	if len(ts) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(ts))
	for _, name := range sortedNames(ts) {
		t := ts[name]
		defs = append(defs, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

func sortedNames(ts toolset) []string {
	names := make([]string, 0, len(ts))
	for n := range ts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// executeToolCalls persists and announces every requested call, executes them
// concurrently, then persists and announces their outputs in request order.
// Call records always precede output records, and outputs keep the model's
// requested ordering regardless of completion order.
func (r *Runner) executeToolCalls(ctx context.Context, rs *runState, tools toolset, calls []core.ToolCall) error {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = util.NewID()
		}
	}

	for _, tc := range calls {
		fc, err := rs.persist(r, core.NewFunctionCall(rs.agent.Name, rs.caller, tc.ID, tc.Name, tc.Arguments), true)
		if err != nil {
			return err
		}
		rs.send(stream.Event{
			Type:    stream.EventToolCallItem,
			ItemID:  r.itemID(rs.info, tc.ID, rs.outputIndex),
			CallID:  tc.ID,
			Message: &fc,
		})
	}

	results := make([]string, len(calls))
	var g errgroup.Group
	for i, tc := range calls {
		g.Go(func() error {
			results[i] = r.executeToolCall(ctx, rs, tools, tc)
			return nil
		})
	}
	_ = g.Wait()

	for i, tc := range calls {
		out, err := rs.persist(r, core.NewFunctionCallOutput(rs.agent.Name, rs.caller, tc.ID, results[i]), true)
		if err != nil {
			return err
		}
		rs.send(stream.Event{
			Type:    stream.EventToolCallOutputItem,
			ItemID:  r.itemID(rs.info, tc.ID, rs.outputIndex),
			CallID:  tc.ID,
			Message: &out,
		})
	}
	return nil
}

// executeToolCall runs a single tool call and renders its outcome as the
// model-visible output string. Tool failures and concurrency rejections are
// data, not run errors: the model reads them and decides how to proceed.
func (r *Runner) executeToolCall(ctx context.Context, rs *runState, tools toolset, tc core.ToolCall) string {
	t, ok := tools[tc.Name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", tc.Name)
	}

	if tool.IsSerialized(t) {
		token, err := r.gate.AcquireTool(t.Name())
		if err != nil {
			var violation *core.ConcurrencyViolationError
			if errors.As(err, &violation) {
				return violation.Error()
			}
			return fmt.Sprintf("Error: %v", err)
		}
		defer token.Release()
	}

	args := map[string]any{}
	if tc.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			return fmt.Sprintf("Error: invalid tool arguments: %v", err)
		}
	}

	toolCtx := tool.NewContext(ctx, rs.agent.Name, rs.caller, tc.ID, rs.runID, rs.logger)
	toolCtx.SetDelegate(r.delegateFunc(rs))

	result, err := t.Call(toolCtx, args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return stringify(result)
}

// delegateFunc builds the delegation hook for tools executed within a run:
// messages to other agents run as full nested runs whose events land on the
// delegated sink, and whose final text becomes the tool result. A busy
// recipient rejects synchronously with a concurrency violation.
func (r *Runner) delegateFunc(rs *runState) tool.DelegateFunc {
	sender := rs.agent.Name
	return func(ctx context.Context, recipient, message string) (string, error) {
		sub, err := r.graph.Get(recipient)
		if err != nil {
			return "", err
		}

		required := sub.Model.Info().Dialect
		history := r.store.Conversation(recipient, sender)
		if err := protocol.ValidateProtocol(history, core.ThreadID(sender, recipient), required); err != nil {
			return "", err
		}

		token, err := r.gate.Acquire(recipient)
		if err != nil {
			return "", err
		}
		defer token.Release()

		res, err := r.executeRun(ctx, util.NewID(), sub, sender, message, rs.delegated, rs.delegated)
		if err != nil {
			return "", err
		}
		return res.FinalText, nil
	}
}

// itemID produces the identifier of an item event. Backends that stream real
// ids keep them elsewhere; backends emitting the placeholder get stable ids
// derived from call correlation.
func (r *Runner) itemID(info model.Info, callID string, outputIndex int) string {
	if !info.EmitsPlaceholderIDs {
		return util.NewID()
	}
	rewritten := protocol.RewritePlaceholderIDs([]stream.Event{{
		ItemID:      protocol.PlaceholderItemID,
		CallID:      callID,
		OutputIndex: outputIndex,
	}})
	return rewritten[0].ItemID
}

// stringify renders a tool result for the function_call_output record.
func stringify(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
