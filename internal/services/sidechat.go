package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"jaco-backend/internal/metrics"
	"jaco-backend/internal/models"
	"jaco-backend/internal/repository"
)

// SideChatStore is the persistence the side chat service needs.
type SideChatStore interface {
	Create(ctx context.Context, sc *models.SideChat) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SideChat, error)
	ListByChat(ctx context.Context, chatID, userID uuid.UUID) ([]*models.SideChat, error)
	AddMessage(ctx context.Context, m *models.SideChatMessage) error
	Close(ctx context.Context, id uuid.UUID, status string, combined *string) (*models.SideChat, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DiscardIdle(ctx context.Context, before time.Time) (int64, error)
}

type SideChatService struct {
	store     SideChatStore
	llm       LLM
	publisher Publisher
}

func NewSideChatService(store SideChatStore, llm LLM, publisher Publisher) *SideChatService {
	return &SideChatService{store: store, llm: llm, publisher: publisher}
}

func observe(op string, err error) {
	metrics.SideChatOperations.WithLabelValues(op, metrics.Outcome(err)).Inc()
}

func (s *SideChatService) Create(ctx context.Context, userID uuid.UUID, req models.CreateSideChatRequest) (sc *models.SideChat, err error) {
	defer func() { observe("create", err) }()

	fields := map[string]string{}
	chatID, parseErr := uuid.Parse(strings.TrimSpace(req.ChatID))
	if parseErr != nil {
		fields["chat_id"] = "Must be a valid chat id"
	}
	if req.StepNumber == nil {
		fields["step_number"] = "Required"
	} else if *req.StepNumber < 0 {
		fields["step_number"] = "Must not be negative"
	}
	if strings.TrimSpace(req.OriginalStepContent) == "" {
		fields["original_step_content"] = "Required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	sc = &models.SideChat{
		ChatID:              chatID,
		UserID:              userID,
		StepNumber:          *req.StepNumber,
		OriginalStepContent: req.OriginalStepContent,
		Status:              models.SideChatOpen,
		Messages:            []models.SideChatMessage{},
	}
	if err := s.store.Create(ctx, sc); err != nil {
		return nil, fmt.Errorf("failed to create side chat: %w", err)
	}
	return sc, nil
}

func (s *SideChatService) ListByChat(ctx context.Context, userID, chatID uuid.UUID) ([]*models.SideChat, error) {
	list, err := s.store.ListByChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*models.SideChat{}
	}
	return list, nil
}

// getOwned loads a side chat and checks it belongs to userID.
func (s *SideChatService) getOwned(ctx context.Context, userID, id uuid.UUID) (*models.SideChat, error) {
	sc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Side chat not found")
	}
	if sc.UserID != userID {
		return nil, &ForbiddenError{Message: "Access denied"}
	}
	return sc, nil
}

func (s *SideChatService) getOpen(ctx context.Context, userID, id uuid.UUID, action string) (*models.SideChat, error) {
	sc, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !sc.IsOpen() {
		return nil, &InvalidStateError{Message: fmt.Sprintf("Cannot %s a %s side chat", action, sc.Status)}
	}
	return sc, nil
}

func (s *SideChatService) Get(ctx context.Context, userID, id uuid.UUID) (*models.SideChat, error) {
	return s.getOwned(ctx, userID, id)
}

func (s *SideChatService) AddMessage(ctx context.Context, userID, id uuid.UUID, req models.AddSideChatMessageRequest) (msg *models.SideChatMessage, err error) {
	defer func() { observe("add_message", err) }()

	fields := map[string]string{}
	if req.Role != models.RoleUser && req.Role != models.RoleAssistant {
		fields["role"] = "Must be user or assistant"
	}
	if strings.TrimSpace(req.Content) == "" {
		fields["content"] = "Required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if _, err := s.getOpen(ctx, userID, id, "add messages to"); err != nil {
		return nil, err
	}
	return s.appendMessage(ctx, id, req.Role, req.Content)
}

func (s *SideChatService) appendMessage(ctx context.Context, id uuid.UUID, role, content string) (*models.SideChatMessage, error) {
	msg := &models.SideChatMessage{SideChatID: id, Role: role, Content: content}
	if err := s.store.AddMessage(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrSideChatClosed) {
			return nil, &InvalidStateError{Message: "Side chat is no longer open"}
		}
		return nil, notFoundOr(err, "Side chat not found")
	}
	return msg, nil
}

// Reply generates the assistant's answer to the discussion so far and
// appends it to the side chat.
func (s *SideChatService) Reply(ctx context.Context, userID, id uuid.UUID) (msg *models.SideChatMessage, err error) {
	defer func() { observe("reply", err) }()

	sc, err := s.getOpen(ctx, userID, id, "reply in")
	if err != nil {
		return nil, err
	}
	if n := len(sc.Messages); n == 0 || sc.Messages[n-1].Role != models.RoleUser {
		return nil, &ValidationError{Fields: map[string]string{"messages": "Last message must be from the user"}}
	}
	if s.llm == nil {
		return nil, &AIError{Message: "no language model configured"}
	}

	out, err := s.llm.Complete(ctx, "reply", BuildReplyPrompt(sc.OriginalStepContent, sc.Messages))
	if err != nil {
		return nil, &AIError{Message: "Failed to generate reply", Err: err}
	}
	return s.appendMessage(ctx, id, models.RoleAssistant, strings.TrimSpace(out))
}

// Combine rewrites the side chat's step with the discussion folded in and
// archives the side chat as combined. On model failure it stays open.
func (s *SideChatService) Combine(ctx context.Context, userID, id uuid.UUID) (sc *models.SideChat, err error) {
	defer func() { observe("combine", err) }()

	sc, err = s.getOpen(ctx, userID, id, "combine")
	if err != nil {
		return nil, err
	}

	combined, err := GenerateCombinedStep(ctx, s.llm, sc.OriginalStepContent, sc.Messages)
	if err != nil {
		log.Error().Err(err).Str("side_chat_id", id.String()).Msg("combine failed")
		return nil, err
	}

	updated, err := s.store.Close(ctx, id, models.SideChatCombined, &combined)
	if err != nil {
		if errors.Is(err, repository.ErrSideChatClosed) {
			return nil, &InvalidStateError{Message: "Side chat is no longer open"}
		}
		return nil, notFoundOr(err, "Side chat not found")
	}

	s.publish(ctx, userID, models.WSSideChatCombined, updated, combined)
	return updated, nil
}

// Delete discards the side chat and all of its messages.
func (s *SideChatService) Delete(ctx context.Context, userID, id uuid.UUID) (resp *models.DeleteSideChatResponse, err error) {
	defer func() { observe("delete", err) }()

	sc, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return nil, notFoundOr(err, "Side chat not found")
	}

	s.publish(ctx, userID, models.WSSideChatDiscarded, sc, "")
	return &models.DeleteSideChatResponse{Status: "ok", ID: id}, nil
}

// DiscardIdle marks open side chats untouched since before as discarded.
func (s *SideChatService) DiscardIdle(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.store.DiscardIdle(ctx, before)
	if n > 0 {
		metrics.SideChatOperations.WithLabelValues("expire", metrics.OutcomeSuccess).Add(float64(n))
	}
	return n, err
}

func (s *SideChatService) publish(ctx context.Context, userID uuid.UUID, eventType string, sc *models.SideChat, content string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, userID, models.WSMessage{
		Type: eventType,
		Payload: models.SideChatEvent{
			SideChatID: sc.ID,
			ChatID:     sc.ChatID,
			StepNumber: sc.StepNumber,
			Content:    content,
		},
	})
}
