package runner

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/protocol"
	"github.com/hupe1980/agentrelay/stream"
)

// emitFunc delivers one tagged event to a run's event sink. Implementations
// never block a finished consumer; delivery failures are dropped while the
// run continues.
type emitFunc func(ev stream.Event)

// runState is the mutable bookkeeping of one run: messages persisted so far
// and the output index counter for item correlation.
type runState struct {
	runID       string
	agent       *agent.Agent
	caller      string
	info        model.Info
	emit        emitFunc
	delegated   emitFunc
	logger      logging.Logger
	newMessages []core.Message
	outputIndex int
}

// persist stamps routing metadata, optionally the model dialect, and appends
// the message to the store.
func (rs *runState) persist(r *Runner, msg core.Message, stampDialect bool) (core.Message, error) {
	protocol.StampMetadata(&msg, rs.agent.Name, rs.caller)
	if stampDialect && rs.info.Dialect != "" {
		if err := protocol.StampProtocol(&msg, rs.info.Dialect); err != nil {
			return core.Message{}, err
		}
	}
	if err := r.store.Append(msg); err != nil {
		return core.Message{}, err
	}
	rs.newMessages = append(rs.newMessages, msg)
	return msg, nil
}

// send tags the event with the run's identity before delivery.
func (rs *runState) send(ev stream.Event) {
	rs.emit(stream.Tag(ev, rs.agent.Name, rs.caller, rs.runID))
}

// executeRun performs one full run of an agent handling an incoming message:
// input guardrails, the model/tool loop, response validation with retries,
// and persistence of everything the run produced. The caller owns gating and
// final-result settlement.
func (r *Runner) executeRun(
	ctx context.Context,
	runID string,
	ag *agent.Agent,
	caller, message string,
	emit, delegated emitFunc,
) (*core.RunResult, error) {
	logger := logging.WithRun(r.logger, runID, ag.Name, caller)
	logger.Info("run.start", "sender", senderName(caller))

	rs := &runState{
		runID:     runID,
		agent:     ag,
		caller:    caller,
		info:      ag.Model.Info(),
		emit:      emit,
		delegated: delegated,
		logger:    logger,
	}

	for _, g := range ag.InputGuardrails {
		g.ResetPersisted()
	}
	for _, g := range ag.OutputGuardrails {
		g.ResetPersisted()
	}

	if _, err := rs.persist(r, core.NewUserMessage(ag.Name, caller, message), false); err != nil {
		return nil, err
	}

	for _, g := range ag.InputGuardrails {
		res, err := g.Run(ctx, message)
		if err != nil {
			return nil, fmt.Errorf("input guardrail %s: %w", g.Name(), err)
		}
		if !res.TripwireTriggered {
			continue
		}
		logger.Warn("run.input_guardrail.tripped", "guardrail", g.Name())
		if g.MarkPersisted() {
			if _, err := rs.persist(r, core.NewSystemMessage(ag.Name, caller, res.Guidance), false); err != nil {
				return nil, err
			}
		}
		// The model never sees the message; the guidance is the response.
		return &core.RunResult{
			RunID:       runID,
			Agent:       ag.Name,
			CallerAgent: caller,
			FinalText:   res.Guidance,
			NewMessages: rs.newMessages,
		}, nil
	}

	tools := r.toolset(ag)
	defs := toolDefinitions(tools)

	maxAttempts := ag.MaxValidationAttempts
	if maxAttempts <= 0 {
		maxAttempts = r.opts.MaxValidationAttempts
	}

	var lastGuidance string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		candidate, err := r.runTurn(ctx, rs, tools, defs)
		if err != nil {
			return nil, err
		}

		guidance, rejected, err := r.reviewCandidate(ctx, rs, candidate)
		if err != nil {
			return nil, err
		}
		if rejected {
			lastGuidance = guidance
			logger.Warn("run.validation.rejected", "attempt", attempt, "guidance", guidance)
			continue
		}

		final, err := rs.persist(r, core.NewAssistantMessage(ag.Name, caller, candidate), true)
		if err != nil {
			return nil, err
		}
		rs.send(stream.Event{
			Type:        stream.EventMessageOutputItem,
			ItemID:      r.itemID(rs.info, "", rs.outputIndex),
			OutputIndex: rs.outputIndex,
			Message:     &final,
		})
		rs.outputIndex++

		logger.Info("run.done", "attempts", attempt)
		return &core.RunResult{
			RunID:       runID,
			Agent:       ag.Name,
			CallerAgent: caller,
			FinalText:   candidate,
			NewMessages: rs.newMessages,
		}, nil
	}

	return nil, &core.ValidationExhaustedError{
		Agent:        ag.Name,
		Attempts:     maxAttempts,
		LastGuidance: lastGuidance,
	}
}

// runTurn drives the model/tool loop until the model answers with plain text
// and returns that candidate, unpersisted. Interim assistant text produced
// alongside tool calls is persisted and emitted immediately.
func (r *Runner) runTurn(
	ctx context.Context,
	rs *runState,
	tools toolset,
	defs []model.ToolDefinition,
) (string, error) {
	for iter := 0; iter < r.opts.MaxToolIterations; iter++ {
		resp, err := r.invokeModel(ctx, rs, defs)
		if err != nil {
			return "", err
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		if resp.Content != "" {
			interim, err := rs.persist(r, core.NewAssistantMessage(rs.agent.Name, rs.caller, resp.Content), true)
			if err != nil {
				return "", err
			}
			rs.send(stream.Event{
				Type:        stream.EventMessageOutputItem,
				ItemID:      r.itemID(rs.info, "", rs.outputIndex),
				OutputIndex: rs.outputIndex,
				Message:     &interim,
			})
			rs.outputIndex++
		}

		if err := r.executeToolCalls(ctx, rs, tools, resp.ToolCalls); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("agent %s exceeded %d tool iterations", rs.agent.Name, r.opts.MaxToolIterations)
}

// invokeModel replays the normalized thread view through the agent's model,
// forwarding text deltas as they arrive and returning the terminal chunk.
func (r *Runner) invokeModel(ctx context.Context, rs *runState, defs []model.ToolDefinition) (*model.Response, error) {
	view := r.store.Conversation(rs.agent.Name, rs.caller)
	req := model.Request{
		Instructions: rs.agent.Instructions,
		Messages:     protocol.StripMetadataAll(view),
		Tools:        defs,
		Stream:       true,
	}

	respCh, errCh := rs.agent.Model.Generate(ctx, req)

	var final *model.Response
	for resp := range respCh {
		if resp.Partial {
			if resp.Delta != "" {
				rs.send(stream.Event{Type: stream.EventMessageDelta, Delta: resp.Delta})
			}
			continue
		}
		f := resp
		final = &f
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if final == nil {
		return nil, fmt.Errorf("model %s produced no terminal response", rs.info.Name)
	}
	return final, nil
}

// reviewCandidate runs output guardrails and the response validator against a
// candidate final text. A rejection persists its guidance (once per guardrail,
// every time for the validator) and reports rejected=true.
func (r *Runner) reviewCandidate(ctx context.Context, rs *runState, candidate string) (string, bool, error) {
	for _, g := range rs.agent.OutputGuardrails {
		res, err := g.Run(ctx, candidate)
		if err != nil {
			return "", false, fmt.Errorf("output guardrail %s: %w", g.Name(), err)
		}
		if !res.TripwireTriggered {
			continue
		}
		if g.MarkPersisted() {
			if _, err := rs.persist(r, core.NewSystemMessage(rs.agent.Name, rs.caller, res.Guidance), false); err != nil {
				return "", false, err
			}
		}
		return res.Guidance, true, nil
	}

	if rs.agent.Validator != nil {
		if err := rs.agent.Validator(ctx, candidate); err != nil {
			guidance := err.Error()
			if _, perr := rs.persist(r, core.NewSystemMessage(rs.agent.Name, rs.caller, guidance), false); perr != nil {
				return "", false, perr
			}
			return guidance, true, nil
		}
	}

	return "", false, nil
}

func senderName(caller string) string {
	if caller == "" {
		return core.UserSender
	}
	return caller
}
