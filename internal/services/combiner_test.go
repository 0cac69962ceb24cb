package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"jaco-backend/internal/models"
)

type stubLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
	replies map[string]string
}

func (s *stubLLM) Complete(_ context.Context, purpose, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if r, ok := s.replies[purpose]; ok {
		return r, nil
	}
	return s.reply, nil
}

func TestFormatSideChatHistory(t *testing.T) {
	msgs := []models.SideChatMessage{
		{Role: models.RoleUser, Content: "why port 5432?"},
		{Role: models.RoleAssistant, Content: "it is the postgres default"},
	}
	require.Equal(t, "User: why port 5432?\nJaco: it is the postgres default", FormatSideChatHistory(msgs))
	require.Equal(t, "", FormatSideChatHistory(nil))
}

func TestBuildCombinePrompt(t *testing.T) {
	prompt := BuildCombinePrompt("Install postgres", []models.SideChatMessage{
		{Role: models.RoleUser, Content: "on mac?"},
	})
	require.Contains(t, prompt, "Original step:\nInstall postgres")
	require.Contains(t, prompt, "Side discussion:\nUser: on mac?")
	require.Contains(t, prompt, "Output ONLY the rewritten step text")
}

func TestGenerateCombinedStep_TrimsOutput(t *testing.T) {
	llm := &stubLLM{reply: "  brew install postgresql@16\n"}
	out, err := GenerateCombinedStep(context.Background(), llm, "Install postgres", nil)
	require.NoError(t, err)
	require.Equal(t, "brew install postgresql@16", out)
	require.Len(t, llm.prompts, 1)
}

func TestGenerateCombinedStep_Failures(t *testing.T) {
	_, err := GenerateCombinedStep(context.Background(), &stubLLM{err: errors.New("quota")}, "x", nil)
	var aiErr *AIError
	require.ErrorAs(t, err, &aiErr)
	require.True(t, strings.Contains(err.Error(), "quota"))

	_, err = GenerateCombinedStep(context.Background(), &stubLLM{reply: "   "}, "x", nil)
	require.ErrorAs(t, err, &aiErr)

	_, err = GenerateCombinedStep(context.Background(), nil, "x", nil)
	require.ErrorAs(t, err, &aiErr)
}
