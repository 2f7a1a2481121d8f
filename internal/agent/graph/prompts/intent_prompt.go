package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/intent_prompt.txt
var intentPromptTemplate string

var intentTemplate = prompt.FromMessages(schema.GoTemplate, schema.UserMessage(intentPromptTemplate))

// RenderIntentPrompt renders the intent classification prompt via the Eino
// prompt component, which emits Prompt callbacks. history is the rendered
// context block and may be empty.
func RenderIntentPrompt(ctx context.Context, history, utterance string) (string, error) {
	msgs, err := intentTemplate.Format(ctx, map[string]any{
		"history":   history,
		"utterance": utterance,
	})
	if err != nil {
		return "", fmt.Errorf("render intent prompt: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("render intent prompt: empty result")
	}
	return msgs[0].Content, nil
}
