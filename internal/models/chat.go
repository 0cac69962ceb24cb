package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// Chat is the parent conversation. Only the metadata side chats, step mode
// and topic splitting need is stored here; the message stream lives elsewhere.
type Chat struct {
	ID                uuid.UUID       `json:"id"`
	UserID            uuid.UUID       `json:"user_id"`
	Title             string          `json:"title"`
	Messages          []ChatMessage   `json:"messages"`
	Meta              JacoMeta        `json:"meta"`
	MessageEmbeddings [][]float32     `json:"-"`
	ParentChatID      *uuid.UUID      `json:"parent_chat_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// JacoMeta is stored under the "jaco" key of a chat's meta document.
type JacoMeta struct {
	StepContext    StepContext `json:"step_context"`
	ParentChatID   *string     `json:"parent_chat_id"`
	SplitSummary   *string     `json:"split_summary"`
	TopicSummary   *string     `json:"topic_summary"`
	SideChatActive bool        `json:"side_chat_active"`
}

// DefaultJacoMeta is used for chats that have never been touched by step
// mode or topic tracking.
func DefaultJacoMeta() JacoMeta {
	return JacoMeta{StepContext: DefaultStepContext()}
}

// UnmarshalJSON fills missing fields with their defaults so that older meta
// documents keep step mode enabled.
func (m *JacoMeta) UnmarshalJSON(data []byte) error {
	type alias JacoMeta
	out := alias(DefaultJacoMeta())
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*m = JacoMeta(out)
	return nil
}
