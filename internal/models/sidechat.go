package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SideChatOpen      = "open"
	SideChatCombined  = "combined"
	SideChatDiscarded = "discarded"

	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// SideChat is a branched discussion attached to one step of a parent chat.
type SideChat struct {
	ID                  uuid.UUID         `json:"id"`
	ChatID              uuid.UUID         `json:"chat_id"`
	UserID              uuid.UUID         `json:"user_id"`
	StepNumber          int               `json:"step_number"`
	OriginalStepContent string            `json:"original_step_content"`
	CombinedStepContent *string           `json:"combined_step_content"`
	Status              string            `json:"status"`
	Messages            []SideChatMessage `json:"messages"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// IsOpen reports whether messages may still be appended.
func (s *SideChat) IsOpen() bool {
	return s.Status == SideChatOpen
}

type SideChatMessage struct {
	ID         uuid.UUID `json:"id"`
	SideChatID uuid.UUID `json:"side_chat_id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Ordering   int       `json:"ordering"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateSideChatRequest struct {
	ChatID              string `json:"chat_id"`
	StepNumber          *int   `json:"step_number"`
	OriginalStepContent string `json:"original_step_content"`
}

type AddSideChatMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type DeleteSideChatResponse struct {
	Status string    `json:"status"`
	ID     uuid.UUID `json:"id"`
}
