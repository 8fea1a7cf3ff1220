// Package anthropic provides a model wrapper for the Anthropic Claude API.
//
// The Messages API enforces strict tool pairing: every tool_use block must be
// answered by a tool_result in the immediately following user message. The
// adapter therefore reorders replayed histories for adjacency before
// conversion and rejects turns whose calls cannot be paired.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
	"github.com/hupe1980/agentrelay/protocol"
)

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model
// interface. Histories it produces are stamped with the responses dialect.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

// Generate implements unified streaming / non-streaming generation.
// It adapts the Anthropic Messages API (with tool calling) into
// model.Response events.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		history, unpaired := protocol.ReorderForStrictAdjacency(req.Messages)
		if len(unpaired) > 0 {
			errCh <- fmt.Errorf("anthropic requires paired tool results, missing outputs for calls: %s",
				strings.Join(unpaired, ", "))
			return
		}

		messages := buildMessages(history)

		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    messages,
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
		}

		if systemBlocks := extractSystemBlocks(req.Instructions, history); len(systemBlocks) > 0 {
			params.System = systemBlocks
		}

		if len(req.Tools) > 0 {
			params.Tools = buildTools(req.Tools)
		}

		if req.Stream {
			m.handleStreaming(ctx, params, out, errCh)
			return
		}
		m.handleNonStreaming(ctx, params, out, errCh)
	}()

	return out, errCh
}

// buildMessages converts a normalized history to the Anthropic message
// format. Item-style function_call entries become tool_use blocks on an
// assistant message; their outputs become tool_result blocks on the next
// user message. The history arrives adjacency-ordered, so a simple
// accumulate-and-flush walk suffices.
func buildMessages(history []core.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	var assistantBlocks []anthropic.ContentBlockParamUnion
	var userBlocks []anthropic.ContentBlockParamUnion

	flushAssistant := func() {
		if len(assistantBlocks) > 0 {
			messages = append(messages, anthropic.NewAssistantMessage(assistantBlocks...))
			assistantBlocks = nil
		}
	}
	flushUser := func() {
		if len(userBlocks) > 0 {
			messages = append(messages, anthropic.NewUserMessage(userBlocks...))
			userBlocks = nil
		}
	}

	for _, msg := range history {
		switch {
		case msg.Type == core.TypeFunctionCall:
			flushUser()
			assistantBlocks = append(assistantBlocks, anthropic.NewToolUseBlock(
				msg.CallID, decodeArguments(msg.Arguments), msg.Name))
			continue
		case msg.Type == core.TypeFunctionCallOutput:
			flushAssistant()
			userBlocks = append(userBlocks, anthropic.NewToolResultBlock(msg.CallID, msg.Output, false))
			continue
		case msg.Type == core.TypeReasoning:
			continue
		}

		switch msg.Role {
		case core.RoleSystem:
			continue // folded into the system prompt
		case core.RoleUser:
			flushAssistant()
			if msg.Content != "" {
				userBlocks = append(userBlocks, anthropic.NewTextBlock(msg.Content))
			}
		case core.RoleTool:
			flushAssistant()
			userBlocks = append(userBlocks, anthropic.NewToolResultBlock(msg.CallID, msg.Content, false))
		case core.RoleAssistant:
			flushUser()
			if msg.Content != "" {
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				assistantBlocks = append(assistantBlocks, anthropic.NewToolUseBlock(
					tc.ID, decodeArguments(tc.Arguments), tc.Name))
			}
		default:
			flushAssistant()
			if msg.Content != "" {
				userBlocks = append(userBlocks, anthropic.NewTextBlock(msg.Content))
			}
		}
	}
	flushAssistant()
	flushUser()

	return messages
}

func decodeArguments(raw string) any {
	if raw == "" {
		return map[string]any{}
	}
	var input any
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return raw
	}
	return input
}

// extractSystemBlocks folds the request instructions plus any system messages
// in the history into the system prompt blocks.
func extractSystemBlocks(instructions string, history []core.Message) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	if instructions != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: instructions})
	}
	for _, msg := range history {
		if msg.Role == core.RoleSystem && msg.Content != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: msg.Content})
		}
	}
	return blocks
}

// buildTools converts normalized tool definitions to the Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if tool.Parameters != nil {
			if properties, exists := tool.Parameters["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := tool.Parameters["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []any:
					var names []string
					for _, r := range req {
						if s, ok := r.(string); ok {
							names = append(names, s)
						}
					}
					inputSchema.Required = names
				}
			}
		}

		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
	}

	return anthropicTools
}

// handleStreaming consumes the Messages streaming API, forwarding text deltas
// and emitting the accumulated final response when the stream closes.
func (m *Model) handleStreaming(
	ctx context.Context,
	params anthropic.MessageNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Messages.NewStreaming(ctx, params)
	acc := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			errCh <- fmt.Errorf("anthropic accumulate error: %w", err)
			return
		}
		if deltaEvent, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if textDelta, ok := deltaEvent.Delta.AsAny().(anthropic.TextDelta); ok && textDelta.Text != "" {
				out <- model.Response{Partial: true, Delta: textDelta.Text}
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("anthropic streaming error: %w", err)
		return
	}
	out <- finalResponse(&acc)
}

// handleNonStreaming processes a normal (non-streaming) message.
func (m *Model) handleNonStreaming(
	ctx context.Context,
	params anthropic.MessageNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("anthropic api error: %w", err)
		return
	}
	out <- finalResponse(resp)
}

// finalResponse converts a complete Anthropic message into the terminal
// model.Response chunk.
func finalResponse(msg *anthropic.Message) model.Response {
	var textBuilder strings.Builder
	var calls []core.ToolCall

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			textBuilder.WriteString(block.AsText().Text)
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := ""
			if toolBlock.Input != nil {
				if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
					args = string(argsBytes)
				}
			}
			calls = append(calls, core.ToolCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}

	finishReason := "stop"
	if msg.StopReason != "" {
		finishReason = string(msg.StopReason)
	}

	return model.Response{
		Partial:      false,
		Content:      textBuilder.String(),
		ToolCalls:    calls,
		FinishReason: finishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:              string(m.opts.Model),
		Provider:          "anthropic",
		Dialect:           core.ProtocolResponses,
		SupportsTools:     true,
		StrictToolPairing: true,
	}
}
