package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"jaco-backend/internal/middleware"
	"jaco-backend/internal/models"
)

type sideChatService interface {
	Create(ctx context.Context, userID uuid.UUID, req models.CreateSideChatRequest) (*models.SideChat, error)
	ListByChat(ctx context.Context, userID, chatID uuid.UUID) ([]*models.SideChat, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.SideChat, error)
	AddMessage(ctx context.Context, userID, id uuid.UUID, req models.AddSideChatMessageRequest) (*models.SideChatMessage, error)
	Reply(ctx context.Context, userID, id uuid.UUID) (*models.SideChatMessage, error)
	Combine(ctx context.Context, userID, id uuid.UUID) (*models.SideChat, error)
	Delete(ctx context.Context, userID, id uuid.UUID) (*models.DeleteSideChatResponse, error)
}

type SideChatHandler struct {
	sideChats sideChatService
}

func NewSideChatHandler(sideChats sideChatService) *SideChatHandler {
	return &SideChatHandler{sideChats: sideChats}
}

func (h *SideChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSideChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sc, err := h.sideChats.Create(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (h *SideChatHandler) ListByChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := urlID(w, r, "chatId", "chat")
	if !ok {
		return
	}

	list, err := h.sideChats.ListByChat(r.Context(), middleware.GetUserID(r.Context()), chatID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *SideChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "side chat")
	if !ok {
		return
	}

	sc, err := h.sideChats.Get(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (h *SideChatHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "side chat")
	if !ok {
		return
	}
	var req models.AddSideChatMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.sideChats.AddMessage(r.Context(), middleware.GetUserID(r.Context()), id, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *SideChatHandler) Reply(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "side chat")
	if !ok {
		return
	}

	msg, err := h.sideChats.Reply(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *SideChatHandler) Combine(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "side chat")
	if !ok {
		return
	}

	sc, err := h.sideChats.Combine(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (h *SideChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "side chat")
	if !ok {
		return
	}

	resp, err := h.sideChats.Delete(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
