package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MemoryBiographical = "biographical"
	MemoryPreference   = "preference"
	MemoryTechnical    = "technical"
	MemoryBehavioral   = "behavioral"
	MemoryContextual   = "contextual"
)

func ValidMemoryCategory(c string) bool {
	switch c {
	case MemoryBiographical, MemoryPreference, MemoryTechnical, MemoryBehavioral, MemoryContextual:
		return true
	}
	return false
}

// Memory is a fact about a user kept across chats.
type Memory struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	SourceChatID *uuid.UUID `json:"source_chat_id,omitempty"`
	Content      string     `json:"content"`
	Category     string     `json:"category"`
	Confidence   float64    `json:"confidence"`
	Embedding    []float32  `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Fact is one user fact pulled out of a conversation. IsNew is false when a
// stored memory already says nearly the same thing.
type Fact struct {
	Content    string  `json:"content"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	IsNew      bool    `json:"is_new"`
}
