// Package anthropic implements the reasoning engine on the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/lingobridge/lingobridge/core"
	"github.com/lingobridge/lingobridge/reason"
)

// Options configures the Anthropic engine (model id, temperature, max tokens,
// API key).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Engine wraps the Anthropic Messages API behind reason.Engine.
type Engine struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.3,
		MaxTokens:   4096,
	}
}

// NewEngine creates a new Anthropic engine using the official client.
func NewEngine(optFns ...func(o *Options)) *Engine {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Engine{client: &client, opts: opts}
}

// NewEngineFromClient creates a new Anthropic engine from an existing client.
func NewEngineFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Engine {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{client: client, opts: opts}
}

// Step performs one non-streaming message call. A tool_use block in the
// response takes precedence over accompanying text.
func (e *Engine) Step(ctx context.Context, req reason.Request) (reason.StepResult, error) {
	params := anthropic.MessageNewParams{
		Model:       e.opts.Model,
		Messages:    buildMessages(req.Turns),
		MaxTokens:   e.opts.MaxTokens,
		Temperature: anthropic.Float(e.opts.Temperature),
	}
	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := e.client.Messages.New(ctx, params)
	if err != nil {
		return reason.StepResult{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		switch block.Type {
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := ""
			if toolBlock.Input != nil {
				if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
					args = string(argsBytes)
				}
			}
			return reason.StepResult{Tool: &reason.ToolRequest{
				CallID:    toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			}}, nil
		case "text":
			text += block.AsText().Text
		}
	}

	return reason.StepResult{Answer: &reason.FinalAnswer{Text: text}}, nil
}

// buildMessages converts the turn history to the Anthropic message format.
// Tool calls become assistant tool_use blocks and results become user
// tool_result blocks correlated by call id.
func buildMessages(turns []core.Turn) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, t := range turns {
		switch turn := t.(type) {
		case core.UserTurn:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Text)))
		case core.AgentTurn:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Text)))
		case core.ToolCallTurn:
			var input interface{}
			if turn.Arguments != "" {
				if err := json.Unmarshal([]byte(turn.Arguments), &input); err != nil {
					input = turn.Arguments // fallback to string
				}
			}
			messages = append(messages, anthropic.NewAssistantMessage(
				anthropic.NewToolUseBlock(turn.CallID, input, turn.Tool),
			))
		case core.ToolResultTurn:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(turn.CallID, resultText(turn), turn.Failed()),
			))
		}
	}
	return messages
}

func resultText(t core.ToolResultTurn) string {
	if t.Failed() {
		return fmt.Sprintf("error (%s): %s", t.ErrorKind, t.Error)
	}
	if s, ok := t.Result.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", t.Result)
}

// buildTools converts tool definitions to the Anthropic tool format.
func buildTools(tools []reason.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, td := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if td.Parameters != nil {
			if properties, exists := td.Parameters["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := td.Parameters["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []interface{}:
					var reqStrings []string
					for _, r := range req {
						if s, ok := r.(string); ok {
							reqStrings = append(reqStrings, s)
						}
					}
					inputSchema.Required = reqStrings
				}
			}
		}

		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, td.Name)
	}

	return anthropicTools
}

// Info returns metadata describing this Anthropic engine implementation.
func (e *Engine) Info() reason.Info {
	return reason.Info{
		Name:          string(e.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
