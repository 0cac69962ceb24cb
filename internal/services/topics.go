package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"jaco-backend/internal/models"
)

type BoundaryStore interface {
	CreateSplit(ctx context.Context, chat *models.Chat, b *models.TopicBoundary) error
	ListByChat(ctx context.Context, chatID uuid.UUID) ([]*models.TopicBoundary, error)
}

type JobStore interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
	SetResult(ctx context.Context, id, resultID uuid.UUID) error
}

type TopicService struct {
	chats      ChatStore
	boundaries BoundaryStore
	jobs       JobStore
	queue      JobQueue
	llm        LLM
	embedder   Embedder
	publisher  Publisher
	cfg        models.TopicConfig
}

func NewTopicService(
	chats ChatStore,
	boundaries BoundaryStore,
	jobs JobStore,
	queue JobQueue,
	llm LLM,
	embedder Embedder,
	publisher Publisher,
	cfg models.TopicConfig,
) *TopicService {
	return &TopicService{
		chats:      chats,
		boundaries: boundaries,
		jobs:       jobs,
		queue:      queue,
		llm:        llm,
		embedder:   embedder,
		publisher:  publisher,
		cfg:        cfg,
	}
}

func (s *TopicService) Config() models.TopicConfig {
	return s.cfg
}

func countUserMessages(messages []models.ChatMessage) int {
	n := 0
	for _, m := range messages {
		if m.Role == models.RoleUser {
			n++
		}
	}
	return n
}

// Classify embeds a new user message, decides whether it starts a new topic
// and adds it to the chat's transcript and embedding window.
func (s *TopicService) Classify(ctx context.Context, userID, chatID uuid.UUID, req models.ClassifyTopicRequest) (*models.SplitDecision, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, &ValidationError{Fields: map[string]string{"message": "Required"}}
	}
	chat, err := loadOwnedChat(ctx, s.chats, userID, chatID)
	if err != nil {
		return nil, err
	}

	embedding, err := s.embedder.Embed(ctx, message)
	if err != nil {
		return nil, &AIError{Message: "Failed to embed message", Err: err}
	}

	topicSummary := chat.Title
	if chat.Meta.TopicSummary != nil && *chat.Meta.TopicSummary != "" {
		topicSummary = *chat.Meta.TopicSummary
	}

	decision := ClassifyTopicShift(ctx, TopicInput{
		Message:      message,
		Embedding:    embedding,
		History:      chat.MessageEmbeddings,
		TopicSummary: topicSummary,
		MessageCount: countUserMessages(chat.Messages) + 1,
	}, s.cfg, s.llm)

	if err := s.chats.AppendMessage(ctx, chatID, models.ChatMessage{Role: models.RoleUser, Content: message}, embedding, s.cfg.EmbeddingWindow); err != nil {
		return nil, err
	}
	return &decision, nil
}

// RequestSplit queues the split the banner confirmed.
func (s *TopicService) RequestSplit(ctx context.Context, userID, chatID uuid.UUID, req models.TopicSplitRequest) (*models.Job, error) {
	if strings.TrimSpace(req.TriggeringMessage) == "" {
		return nil, &ValidationError{Fields: map[string]string{"triggering_message": "Required"}}
	}
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, notFoundOr(err, "Chat not found")
	}
	if chat.UserID != userID {
		return nil, &ForbiddenError{Message: "Access denied"}
	}

	config, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	job := &models.Job{
		UserID:      userID,
		Type:        models.JobTypeTopicSplit,
		ReferenceID: chatID,
		ConfigJSON:  config,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.jobs.UpdateStatus(ctx, job.ID, models.JobStatusFailed)
		return nil, fmt.Errorf("failed to queue job: %w", err)
	}
	return job, nil
}

// ExecuteSplit runs a queued split: it creates the new chat, records the
// boundary, retitles the original and notifies the user.
func (s *TopicService) ExecuteSplit(ctx context.Context, job *models.Job) (*models.SplitResult, error) {
	var req models.TopicSplitRequest
	if err := json.Unmarshal(job.ConfigJSON, &req); err != nil {
		return nil, fmt.Errorf("invalid split job config: %w", err)
	}

	original, err := s.chats.GetByID(ctx, job.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}

	plan, err := PlanChatSplit(ctx, s.llm, s.cfg, original, req)
	if err != nil {
		return nil, err
	}
	if req.NewTopic != "" {
		plan.NewChat.Meta.TopicSummary = &req.NewTopic
	}
	plan.keyTo(job.ID)

	if err := s.boundaries.CreateSplit(ctx, plan.NewChat, plan.Boundary); err != nil {
		return nil, fmt.Errorf("failed to record topic split: %w", err)
	}
	if s.cfg.AutoTitleOnSplit && plan.Result.OriginalChatNewTitle != "" {
		if err := s.chats.UpdateTitle(ctx, original.ID, plan.Result.OriginalChatNewTitle); err != nil {
			log.Warn().Err(err).Str("chat_id", original.ID.String()).Msg("failed to retitle original chat")
		}
	}
	if err := s.jobs.SetResult(ctx, job.ID, plan.NewChat.ID); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID.String()).Msg("failed to record job result")
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, job.UserID, models.WSMessage{
			Type:    models.WSTopicSplitCompleted,
			Payload: plan.Result,
		})
	}
	return &plan.Result, nil
}

func (s *TopicService) Boundaries(ctx context.Context, userID, chatID uuid.UUID) ([]*models.TopicBoundary, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, notFoundOr(err, "Chat not found")
	}
	if chat.UserID != userID {
		return nil, &ForbiddenError{Message: "Access denied"}
	}
	return s.boundaries.ListByChat(ctx, chatID)
}

func (s *TopicService) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, notFoundOr(err, "Job not found")
	}
	if job.UserID != userID {
		return nil, &ForbiddenError{Message: "Access denied"}
	}
	return job, nil
}
