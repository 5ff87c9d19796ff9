package translate

import (
	"context"
	"fmt"

	"github.com/lingobridge/lingobridge/tool"
)

// NewTool exposes a Translator as the translate_text tool. The direction is
// inferred from the input script: English input translates to Urdu and Urdu
// input to English. Text in neither script yields a guidance message instead
// of an error so the agent can relay it.
func NewTool(tr Translator) *tool.FunctionTool {
	parameters := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{
				"type":        "string",
				"description": "The text to translate, in English or Urdu",
			},
		},
		"required": []string{"text"},
	}

	return tool.NewFunctionTool(
		"translate_text",
		"Translate text between English and Urdu. The direction is detected automatically from the input script.",
		parameters,
		func(ctx context.Context, args map[string]any) (any, error) {
			text, _ := args["text"].(string)

			if !ValidInput(text) {
				return "Please provide text in English or Urdu using standard characters.", nil
			}

			source := DetectLanguage(text)
			target := source.Counterpart()
			if target == LangUnknown {
				return "Please provide text in English or Urdu.", nil
			}

			translated, err := tr.Translate(ctx, text, source, target)
			if err != nil {
				return nil, fmt.Errorf("translation to %s failed: %w", target.Name(), err)
			}

			return fmt.Sprintf("Translation to %s: %s", target.Name(), translated), nil
		},
	)
}
