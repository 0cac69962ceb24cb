package services

import (
	"context"
	"fmt"
	"strings"

	"jaco-backend/internal/models"
)

const combinePromptTemplate = `You are rewriting a step in a multi-step guide based on a side discussion.

Original step:
%s

Side discussion:
%s

Rewrite the original step incorporating the insights from the side discussion.
Keep it concise and actionable. This is still just one step in a larger plan.
If the side discussion fundamentally changes the approach, note that briefly.
Output ONLY the rewritten step text. No preamble.`

const replyPromptTemplate = `You are Jaco, helping the user with one step of a larger plan.

The step under discussion:
%s

Conversation so far:
%s

Answer the user's latest message. Stay focused on this step and keep it short.`

// FormatSideChatHistory renders messages one per line as "User: ..." or
// "Jaco: ..." in insertion order.
func FormatSideChatHistory(messages []models.SideChatMessage) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		speaker := "Jaco"
		if m.Role == models.RoleUser {
			speaker = "User"
		}
		lines = append(lines, speaker+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func BuildCombinePrompt(originalStep string, messages []models.SideChatMessage) string {
	return fmt.Sprintf(combinePromptTemplate, originalStep, FormatSideChatHistory(messages))
}

func BuildReplyPrompt(originalStep string, messages []models.SideChatMessage) string {
	return fmt.Sprintf(replyPromptTemplate, originalStep, FormatSideChatHistory(messages))
}

// GenerateCombinedStep asks the model to rewrite the step using the side
// discussion and returns the trimmed result.
func GenerateCombinedStep(ctx context.Context, llm LLM, originalStep string, messages []models.SideChatMessage) (string, error) {
	if llm == nil {
		return "", &AIError{Message: "no language model configured"}
	}
	out, err := llm.Complete(ctx, "combine", BuildCombinePrompt(originalStep, messages))
	if err != nil {
		return "", &AIError{Message: "Failed to generate combined step", Err: err}
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &AIError{Message: "Failed to generate combined step"}
	}
	return out, nil
}
