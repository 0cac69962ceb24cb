package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"jaco-backend/internal/models"
)

// ErrNoActivePlan is returned when there is no stepped plan to advance or show.
var ErrNoActivePlan = &NotFoundError{Message: "No active plan"}

// ChatStore is the parent chat metadata the step and topic services use.
type ChatStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error)
	GetOrCreate(ctx context.Context, id, userID uuid.UUID) (*models.Chat, error)
	UpdateMeta(ctx context.Context, id uuid.UUID, meta models.JacoMeta) error
	UpdateTitle(ctx context.Context, id uuid.UUID, title string) error
	AppendMessage(ctx context.Context, id uuid.UUID, msg models.ChatMessage, embedding []float32, keep int) error
}

func loadOwnedChat(ctx context.Context, chats ChatStore, userID, chatID uuid.UUID) (*models.Chat, error) {
	chat, err := chats.GetOrCreate(ctx, chatID, userID)
	if err != nil {
		return nil, notFoundOr(err, "Chat not found")
	}
	if chat.UserID != userID {
		return nil, &ForbiddenError{Message: "Access denied"}
	}
	return chat, nil
}

// MemoryKeeper learns user facts from a conversation and recalls them as a
// system prompt block.
type MemoryKeeper interface {
	Remember(ctx context.Context, userID, chatID uuid.UUID, messages []models.ChatMessage) ([]*models.Memory, error)
	Recall(ctx context.Context, userID uuid.UUID, query string) string
}

type StepService struct {
	chats  ChatStore
	memory MemoryKeeper
}

// NewStepService builds the service. memory may be nil to run without user
// memories.
func NewStepService(chats ChatStore, memory MemoryKeeper) *StepService {
	return &StepService{chats: chats, memory: memory}
}

// recentMessages returns the last n messages.
func recentMessages(messages []models.ChatMessage, n int) []models.ChatMessage {
	if len(messages) > n {
		return messages[len(messages)-n:]
	}
	return messages
}

func (s *StepService) saveStepContext(ctx context.Context, chat *models.Chat, sc models.StepContext) error {
	chat.Meta.StepContext = sc
	return s.chats.UpdateMeta(ctx, chat.ID, chat.Meta)
}

// Next serves the next cached step and records it in the transcript.
func (s *StepService) Next(ctx context.Context, userID, chatID uuid.UUID) (*models.NextStepResponse, error) {
	chat, err := loadOwnedChat(ctx, s.chats, userID, chatID)
	if err != nil {
		return nil, err
	}

	resp := NextStep(chat.Meta.StepContext)
	if resp == nil {
		return nil, ErrNoActivePlan
	}
	if err := s.saveStepContext(ctx, chat, resp.StepContext); err != nil {
		return nil, err
	}
	if err := s.chats.AppendMessage(ctx, chatID, models.ChatMessage{Role: models.RoleAssistant, Content: resp.Content}, nil, 0); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *StepService) All(ctx context.Context, userID, chatID uuid.UUID) (*models.AllStepsResponse, error) {
	chat, err := loadOwnedChat(ctx, s.chats, userID, chatID)
	if err != nil {
		return nil, err
	}
	all := AllSteps(chat.Meta.StepContext)
	if all == nil {
		return nil, ErrNoActivePlan
	}
	return all, nil
}

func (s *StepService) SetMode(ctx context.Context, userID, chatID uuid.UUID, req models.StepModeRequest) (*models.StepContext, error) {
	if req.Enabled == nil {
		return nil, &ValidationError{Fields: map[string]string{"enabled": "Required"}}
	}
	chat, err := loadOwnedChat(ctx, s.chats, userID, chatID)
	if err != nil {
		return nil, err
	}

	sc := chat.Meta.StepContext
	sc.StepModeEnabled = *req.Enabled
	if err := s.saveStepContext(ctx, chat, sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Ingest processes a model response for the chat: metadata is stripped and
// recorded, a leaked plan is cut down to its first step.
func (s *StepService) Ingest(ctx context.Context, userID, chatID uuid.UUID, req models.IngestResponseRequest) (*models.IngestResponseResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, &ValidationError{Fields: map[string]string{"content": "Required"}}
	}
	chat, err := loadOwnedChat(ctx, s.chats, userID, chatID)
	if err != nil {
		return nil, err
	}

	res := IngestAssistantResponse(chat.Meta.StepContext, req.Content)
	if err := s.saveStepContext(ctx, chat, res.StepContext); err != nil {
		return nil, err
	}
	reply := models.ChatMessage{Role: models.RoleAssistant, Content: res.Content}
	if err := s.chats.AppendMessage(ctx, chatID, reply, nil, 0); err != nil {
		return nil, err
	}

	if s.memory != nil {
		window := append(append([]models.ChatMessage{}, recentMessages(chat.Messages, memoryWindow-1)...), reply)
		saved, err := s.memory.Remember(ctx, userID, chatID, window)
		if err != nil {
			log.Warn().Err(err).Str("chat_id", chatID.String()).Msg("failed to store memories")
		}
		res.MemoriesSaved = len(saved)
	}
	return &res, nil
}

// Route decides how a user message is answered. "next" style messages are
// served from the plan cache and "show all" from the plan; anything else
// goes to the model with the step prompt injected into req.Messages.
func (s *StepService) Route(ctx context.Context, userID, chatID uuid.UUID, req models.StepRouteRequest) (*models.StepRouteResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, &ValidationError{Fields: map[string]string{"content": "Required"}}
	}
	chat, err := loadOwnedChat(ctx, s.chats, userID, chatID)
	if err != nil {
		return nil, err
	}
	if err := s.chats.AppendMessage(ctx, chatID, models.ChatMessage{Role: models.RoleUser, Content: req.Content}, nil, 0); err != nil {
		return nil, err
	}

	sc := chat.Meta.StepContext
	if sc.StepModeEnabled {
		if IsAdvanceRequest(req.Content) {
			if resp := NextStep(sc); resp != nil {
				if err := s.saveStepContext(ctx, chat, resp.StepContext); err != nil {
					return nil, err
				}
				if err := s.chats.AppendMessage(ctx, chatID, models.ChatMessage{Role: models.RoleAssistant, Content: resp.Content}, nil, 0); err != nil {
					return nil, err
				}
				return &models.StepRouteResult{Action: models.StepActionNext, Step: resp}, nil
			}
		}
		if IsFullPlanRequest(req.Content) {
			if all := AllSteps(sc); all != nil {
				return &models.StepRouteResult{Action: models.StepActionAll, Plan: all}, nil
			}
		}
	}

	messages := append([]models.ChatMessage{}, req.Messages...)
	messages = append(messages, models.ChatMessage{Role: models.RoleUser, Content: req.Content})
	query := formatConversation(recentMessages(messages, memoryWindow))
	messages = InjectStepSystemPrompt(messages, sc)
	if s.memory != nil {
		messages = InjectSystemContext(messages, s.memory.Recall(ctx, userID, query))
	}
	return &models.StepRouteResult{
		Action:   models.StepActionModel,
		Messages: messages,
	}, nil
}
