package models

import (
	"time"

	"github.com/google/uuid"
)

// TopicConfig holds the tunable parameters for topic classification.
type TopicConfig struct {
	SimilarityThreshold    float64 `json:"similarity_threshold" yaml:"similarity_threshold"`
	MinMessagesBeforeSplit int     `json:"min_messages_before_split" yaml:"min_messages_before_split"`
	EmbeddingWindow        int     `json:"embedding_window" yaml:"embedding_window"`
	EmbeddingDecay         float64 `json:"embedding_decay" yaml:"embedding_decay"`
	UseLLMConfirmation     bool    `json:"use_llm_confirmation" yaml:"use_llm_confirmation"`
	AutoTitleOnSplit       bool    `json:"auto_title_on_split" yaml:"auto_title_on_split"`
	IncludeContextSummary  bool    `json:"include_context_summary" yaml:"include_context_summary"`
	MaxContextMessages     int     `json:"max_context_messages" yaml:"max_context_messages"`
	SplitTimeoutMs         int     `json:"split_timeout_ms" yaml:"split_timeout_ms"`
}

func DefaultTopicConfig() TopicConfig {
	return TopicConfig{
		SimilarityThreshold:    0.65,
		MinMessagesBeforeSplit: 3,
		EmbeddingWindow:        5,
		EmbeddingDecay:         0.8,
		UseLLMConfirmation:     true,
		AutoTitleOnSplit:       true,
		IncludeContextSummary:  true,
		MaxContextMessages:     10,
		SplitTimeoutMs:         5000,
	}
}

// SplitDecision is the result of topic classification.
type SplitDecision struct {
	ShouldSplit     bool    `json:"should_split"`
	NewTopicName    string  `json:"new_topic_name"`
	Confidence      float64 `json:"confidence"`
	SimilarityScore float64 `json:"similarity_score"`
	LLMConfirmed    *bool   `json:"llm_confirmed"`
	SplitTimeoutMs  int     `json:"split_timeout_ms"`
}

type ClassifyTopicRequest struct {
	Message string `json:"message"`
}

// TopicSplitRequest is sent when the split banner runs out without objection.
type TopicSplitRequest struct {
	TriggeringMessage string  `json:"triggering_message"`
	NewTopic          string  `json:"new_topic"`
	OldTopic          string  `json:"old_topic"`
	Confidence        float64 `json:"confidence"`
}

type TopicBoundary struct {
	ID                uuid.UUID `json:"id"`
	OriginalChatID    uuid.UUID `json:"original_chat_id"`
	NewChatID         uuid.UUID `json:"new_chat_id"`
	TriggeringMessage string    `json:"triggering_message"`
	OldTopic          string    `json:"old_topic"`
	NewTopic          string    `json:"new_topic"`
	Confidence        float64   `json:"confidence"`
	SplitTimestamp    time.Time `json:"split_timestamp"`
}

type SplitResult struct {
	NewChatID            uuid.UUID `json:"new_chat_id"`
	NewChatTitle         string    `json:"new_chat_title"`
	OriginalChatNewTitle string    `json:"original_chat_new_title"`
	ContextSummary       string    `json:"context_summary"`
}
