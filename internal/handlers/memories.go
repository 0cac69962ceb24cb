package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"jaco-backend/internal/middleware"
	"jaco-backend/internal/models"
)

type memoryService interface {
	List(ctx context.Context, userID uuid.UUID) ([]*models.Memory, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type MemoryHandler struct {
	memories memoryService
}

func NewMemoryHandler(memories memoryService) *MemoryHandler {
	return &MemoryHandler{memories: memories}
}

func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.memories.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Memory{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"memories": list})
}

func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id", "memory")
	if !ok {
		return
	}

	if err := h.memories.Delete(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
