package jacoclient

import (
	"github.com/google/uuid"

	"jaco-backend/internal/models"
)

// Response types are shared with the server so both sides agree on the wire shape.
type (
	SideChat        = models.SideChat
	SideChatMessage = models.SideChatMessage
	DeleteResult    = models.DeleteSideChatResponse
	StepContext     = models.StepContext
	NextStep        = models.NextStepResponse
	AllSteps        = models.AllStepsResponse
	IngestResult    = models.IngestResponseResult
	RouteResult     = models.StepRouteResult
	ChatMessage     = models.ChatMessage
	SplitDecision   = models.SplitDecision
	TopicBoundary   = models.TopicBoundary
	TopicSplit      = models.TopicSplitRequest
	Job             = models.Job
)

type CreateSideChatRequest struct {
	ChatID              uuid.UUID `json:"chat_id"`
	StepNumber          int       `json:"step_number"`
	OriginalStepContent string    `json:"original_step_content"`
}

type AddMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
