package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"jaco-backend/internal/middleware"
	"jaco-backend/internal/models"
)

type stepService interface {
	Next(ctx context.Context, userID, chatID uuid.UUID) (*models.NextStepResponse, error)
	All(ctx context.Context, userID, chatID uuid.UUID) (*models.AllStepsResponse, error)
	SetMode(ctx context.Context, userID, chatID uuid.UUID, req models.StepModeRequest) (*models.StepContext, error)
	Ingest(ctx context.Context, userID, chatID uuid.UUID, req models.IngestResponseRequest) (*models.IngestResponseResult, error)
	Route(ctx context.Context, userID, chatID uuid.UUID, req models.StepRouteRequest) (*models.StepRouteResult, error)
}

type StepHandler struct {
	steps stepService
}

func NewStepHandler(steps stepService) *StepHandler {
	return &StepHandler{steps: steps}
}

func (h *StepHandler) Next(w http.ResponseWriter, r *http.Request) {
	chatID, ok := urlID(w, r, "id", "chat")
	if !ok {
		return
	}

	resp, err := h.steps.Next(r.Context(), middleware.GetUserID(r.Context()), chatID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *StepHandler) All(w http.ResponseWriter, r *http.Request) {
	chatID, ok := urlID(w, r, "id", "chat")
	if !ok {
		return
	}

	resp, err := h.steps.All(r.Context(), middleware.GetUserID(r.Context()), chatID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *StepHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	chatID, ok := urlID(w, r, "id", "chat")
	if !ok {
		return
	}
	var req models.StepModeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sc, err := h.steps.SetMode(r.Context(), middleware.GetUserID(r.Context()), chatID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (h *StepHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	chatID, ok := urlID(w, r, "id", "chat")
	if !ok {
		return
	}
	var req models.IngestResponseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.steps.Ingest(r.Context(), middleware.GetUserID(r.Context()), chatID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *StepHandler) Route(w http.ResponseWriter, r *http.Request) {
	chatID, ok := urlID(w, r, "id", "chat")
	if !ok {
		return
	}
	var req models.StepRouteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.steps.Route(r.Context(), middleware.GetUserID(r.Context()), chatID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
