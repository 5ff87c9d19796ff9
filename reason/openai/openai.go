// Package openai implements the reasoning engine on the OpenAI Chat
// Completions API with function/tool calling. It converts the normalized
// turn history into the SDK's message format and maps the completion back
// into a final answer or a tool request.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/lingobridge/lingobridge/core"
	"github.com/lingobridge/lingobridge/reason"
)

// Options configure the OpenAI engine. Fields mirror a minimal subset of
// Chat Completion parameters; extend via functional options without breaking
// callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Engine wraps the OpenAI Chat Completions API behind reason.Engine.
type Engine struct {
	client *openai.Client
	opts   Options
}

// NewEngine creates a new OpenAI engine using the official client.
func NewEngine(optFns ...func(o *Options)) *Engine {
	client := openai.NewClient()
	return NewEngineFromClient(&client, optFns...)
}

// NewEngineFromClient creates a new OpenAI engine from an existing client.
func NewEngineFromClient(client *openai.Client, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.3,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{client: client, opts: opts}
}

// Step performs one non-streaming completion. A tool call in the response
// takes precedence over accompanying text.
func (e *Engine) Step(ctx context.Context, req reason.Request) (reason.StepResult, error) {
	params := e.buildParams(req)

	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return reason.StepResult{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return reason.StepResult{}, fmt.Errorf("no choices returned")
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		return reason.StepResult{Tool: &reason.ToolRequest{
			CallID:    tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}}, nil
	}

	return reason.StepResult{Answer: &reason.FinalAnswer{Text: msg.Content}}, nil
}

// buildParams assembles the request parameters including tool definitions.
func (e *Engine) buildParams(req reason.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               e.opts.Model,
		Temperature:         openai.Float(e.opts.Temperature),
		MaxCompletionTokens: openai.Int(e.opts.MaxCompletionTokens),
	}
	if len(req.Tools) == 0 {
		return params
	}

	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, td := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        td.Name,
				Description: openai.String(td.Description),
				Parameters:  td.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

// buildMessages converts the turn history into OpenAI chat messages. Tool
// calls become assistant messages carrying tool_calls and results become tool
// role messages correlated by call id.
func buildMessages(req reason.Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Turns)+1)
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}

	for _, t := range req.Turns {
		switch turn := t.(type) {
		case core.UserTurn:
			messages = append(messages, openai.UserMessage(turn.Text))
		case core.AgentTurn:
			messages = append(messages, openai.AssistantMessage(turn.Text))
		case core.ToolCallTurn:
			messages = append(
				messages,
				openai.ChatCompletionMessageParamUnion{OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role: "assistant",
					ToolCalls: []openai.ChatCompletionMessageToolCallParam{{
						ID:   turn.CallID,
						Type: "function",
						Function: openai.ChatCompletionMessageToolCallFunctionParam{
							Name:      turn.Tool,
							Arguments: turn.Arguments,
						},
					}},
				}},
			)
		case core.ToolResultTurn:
			messages = append(messages, openai.ToolMessage(resultText(turn), turn.CallID))
		}
	}
	return messages
}

// resultText renders a tool result turn as the textual payload the backend
// sees. Failures are surfaced as data with their stable kind.
func resultText(t core.ToolResultTurn) string {
	if t.Failed() {
		return fmt.Sprintf("error (%s): %s", t.ErrorKind, t.Error)
	}
	if s, ok := t.Result.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", t.Result)
}

// Info returns metadata describing this OpenAI engine implementation.
func (e *Engine) Info() reason.Info {
	return reason.Info{
		Name:          e.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
