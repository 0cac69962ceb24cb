package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"jaco-backend/internal/models"
)

const contextSummaryPromptTemplate = `Summarize the following conversation in 1-2 sentences.
Focus on the key topic and any important context that would help continue the conversation.

Conversation:
%s

Summary:`

const titlePromptTemplate = `Generate a concise chat title (3-6 words) for a conversation about:
Topic: %s
Latest message: "%s"

Respond with ONLY the title, no quotes or punctuation.`

// GenerateContextSummary summarizes the last max messages. Failures
// produce an empty summary.
func GenerateContextSummary(ctx context.Context, llm LLM, messages []models.ChatMessage, max int) string {
	if len(messages) == 0 || llm == nil {
		return ""
	}
	if max > 0 && len(messages) > max {
		messages = messages[len(messages)-max:]
	}

	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		speaker := "Assistant"
		if m.Role == models.RoleUser {
			speaker = "User"
		}
		lines = append(lines, speaker+": "+m.Content)
	}

	out, err := llm.Complete(ctx, "split_summary", fmt.Sprintf(contextSummaryPromptTemplate, strings.Join(lines, "\n")))
	if err != nil {
		log.Warn().Err(err).Msg("context summary generation failed")
		return ""
	}
	return strings.TrimSpace(out)
}

// GenerateChatTitle asks the model for a short title and falls back to the
// topic hint, or "New Chat" when there is none.
func GenerateChatTitle(ctx context.Context, llm LLM, topicHint, recentMessage string) string {
	fallback := topicHint
	if fallback == "" {
		fallback = "New Chat"
	}
	if llm == nil {
		return fallback
	}

	out, err := llm.Complete(ctx, "title", fmt.Sprintf(titlePromptTemplate, topicHint, recentMessage))
	if err != nil {
		log.Warn().Err(err).Msg("title generation failed")
		return fallback
	}
	if out = strings.TrimSpace(out); out == "" {
		return fallback
	}
	return out
}

// BuildNewChat creates the chat that continues the new topic. It carries
// the context summary as a system message when there is one.
func BuildNewChat(userID uuid.UUID, title string, triggering models.ChatMessage, contextSummary string, parentID uuid.UUID) *models.Chat {
	messages := make([]models.ChatMessage, 0, 2)
	if contextSummary != "" {
		messages = append(messages, models.ChatMessage{
			Role:    models.RoleSystem,
			Content: "Context from previous conversation: " + contextSummary,
		})
	}
	messages = append(messages, triggering)

	meta := models.DefaultJacoMeta()
	parent := parentID.String()
	meta.ParentChatID = &parent
	if contextSummary != "" {
		meta.SplitSummary = &contextSummary
	}

	now := time.Now().UTC()
	return &models.Chat{
		ID:           uuid.New(),
		UserID:       userID,
		Title:        title,
		Messages:     messages,
		Meta:         meta,
		ParentChatID: &parentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// SplitPlan is what a split produces before anything is persisted.
type SplitPlan struct {
	NewChat  *models.Chat
	Boundary *models.TopicBoundary
	Result   models.SplitResult
}

// keyTo derives the new chat and boundary ids from the job, so every attempt
// of the same job writes the same rows.
func (p *SplitPlan) keyTo(jobID uuid.UUID) {
	p.NewChat.ID = uuid.NewSHA1(jobID, []byte("split-chat"))
	p.Boundary.ID = uuid.NewSHA1(jobID, []byte("split-boundary"))
	p.Boundary.NewChatID = p.NewChat.ID
	p.Result.NewChatID = p.NewChat.ID
}

// PlanChatSplit generates the context summary and both titles concurrently
// and assembles the new chat and its boundary record.
func PlanChatSplit(ctx context.Context, llm LLM, cfg models.TopicConfig, original *models.Chat, req models.TopicSplitRequest) (*SplitPlan, error) {
	var summary string
	newTitle := req.NewTopic
	if newTitle == "" {
		newTitle = "New Chat"
	}
	originalTitle := req.OldTopic
	if originalTitle == "" {
		originalTitle = "Previous Chat"
	}

	lastContent := ""
	if n := len(original.Messages); n > 0 {
		lastContent = original.Messages[n-1].Content
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.IncludeContextSummary {
		g.Go(func() error {
			summary = GenerateContextSummary(gctx, llm, original.Messages, cfg.MaxContextMessages)
			return nil
		})
	}
	if cfg.AutoTitleOnSplit && llm != nil {
		g.Go(func() error {
			newTitle = GenerateChatTitle(gctx, llm, req.NewTopic, req.TriggeringMessage)
			return nil
		})
		g.Go(func() error {
			originalTitle = GenerateChatTitle(gctx, llm, req.OldTopic, lastContent)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	triggering := models.ChatMessage{Role: models.RoleUser, Content: req.TriggeringMessage}
	newChat := BuildNewChat(original.UserID, newTitle, triggering, summary, original.ID)

	boundary := &models.TopicBoundary{
		ID:                uuid.New(),
		OriginalChatID:    original.ID,
		NewChatID:         newChat.ID,
		TriggeringMessage: req.TriggeringMessage,
		OldTopic:          req.OldTopic,
		NewTopic:          req.NewTopic,
		Confidence:        req.Confidence,
		SplitTimestamp:    newChat.CreatedAt,
	}

	return &SplitPlan{
		NewChat:  newChat,
		Boundary: boundary,
		Result: models.SplitResult{
			NewChatID:            newChat.ID,
			NewChatTitle:         newTitle,
			OriginalChatNewTitle: originalTitle,
			ContextSummary:       summary,
		},
	}, nil
}
