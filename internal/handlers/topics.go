package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"jaco-backend/internal/middleware"
	"jaco-backend/internal/models"
)

type topicService interface {
	Classify(ctx context.Context, userID, chatID uuid.UUID, req models.ClassifyTopicRequest) (*models.SplitDecision, error)
	RequestSplit(ctx context.Context, userID, chatID uuid.UUID, req models.TopicSplitRequest) (*models.Job, error)
	Boundaries(ctx context.Context, userID, chatID uuid.UUID) ([]*models.TopicBoundary, error)
	GetJob(ctx context.Context, userID, jobID uuid.UUID) (*models.Job, error)
}

type TopicHandler struct {
	topics topicService
}

func NewTopicHandler(topics topicService) *TopicHandler {
	return &TopicHandler{topics: topics}
}

func (h *TopicHandler) Classify(w http.ResponseWriter, r *http.Request) {
	chatID, ok := urlID(w, r, "id", "chat")
	if !ok {
		return
	}
	var req models.ClassifyTopicRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	decision, err := h.topics.Classify(r.Context(), middleware.GetUserID(r.Context()), chatID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// Split is called when the split banner ran out without being cancelled.
func (h *TopicHandler) Split(w http.ResponseWriter, r *http.Request) {
	chatID, ok := urlID(w, r, "id", "chat")
	if !ok {
		return
	}
	var req models.TopicSplitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	job, err := h.topics.RequestSplit(r.Context(), middleware.GetUserID(r.Context()), chatID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"job": job})
}

func (h *TopicHandler) Boundaries(w http.ResponseWriter, r *http.Request) {
	chatID, ok := urlID(w, r, "id", "chat")
	if !ok {
		return
	}

	list, err := h.topics.Boundaries(r.Context(), middleware.GetUserID(r.Context()), chatID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *TopicHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := urlID(w, r, "id", "job")
	if !ok {
		return
	}

	job, err := h.topics.GetJob(r.Context(), middleware.GetUserID(r.Context()), jobID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
