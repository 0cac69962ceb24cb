package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"jaco-backend/internal/metrics"
	"jaco-backend/internal/models"
)

const defaultNewTopicName = "New Topic"

const topicConfirmPromptTemplate = `Given the current conversation topic: "%s"

The user just said: "%s"

Is this a continuation of the current topic, or a shift to a new topic?
Respond with exactly one of:
SAME
NEW: [brief topic name, 3-5 words]`

// CosineSimilarity returns 0 for empty, mismatched or zero-length vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RunningTopicEmbedding is the decay-weighted mean of the last window
// embeddings, with weight decay^i for the i-th most recent one.
func RunningTopicEmbedding(embeddings [][]float32, decay float64, window int) []float32 {
	if len(embeddings) == 0 {
		return nil
	}
	if window <= 0 || window > len(embeddings) {
		window = len(embeddings)
	}

	recent := embeddings[len(embeddings)-window:]
	dim := len(recent[len(recent)-1])
	sum := make([]float64, dim)
	var total float64

	for i := 0; i < len(recent); i++ {
		emb := recent[len(recent)-1-i]
		w := math.Pow(decay, float64(i))
		total += w
		for d := 0; d < dim && d < len(emb); d++ {
			sum[d] += w * float64(emb[d])
		}
	}
	if total == 0 {
		return nil
	}

	out := make([]float32, dim)
	for d := range sum {
		out[d] = float32(sum[d] / total)
	}
	return out
}

// TopicInput is everything ClassifyTopicShift looks at for one message.
type TopicInput struct {
	Message      string
	Embedding    []float32
	History      [][]float32
	TopicSummary string
	MessageCount int
}

// ClassifyTopicShift decides whether the message starts a new topic. The
// embedding check runs first; only messages below the similarity threshold
// go to the model for confirmation. llm may be nil.
func ClassifyTopicShift(ctx context.Context, in TopicInput, cfg models.TopicConfig, llm LLM) models.SplitDecision {
	decision := models.SplitDecision{SimilarityScore: 1, SplitTimeoutMs: cfg.SplitTimeoutMs}

	if in.MessageCount < cfg.MinMessagesBeforeSplit {
		metrics.TopicDecisions.WithLabelValues("too_early").Inc()
		return decision
	}

	topic := RunningTopicEmbedding(in.History, cfg.EmbeddingDecay, cfg.EmbeddingWindow)
	if topic == nil {
		metrics.TopicDecisions.WithLabelValues("no_history").Inc()
		return decision
	}

	similarity := CosineSimilarity(in.Embedding, topic)
	decision.SimilarityScore = similarity
	log.Debug().Float64("similarity", similarity).Float64("threshold", cfg.SimilarityThreshold).Msg("topic similarity")

	if similarity >= cfg.SimilarityThreshold {
		metrics.TopicDecisions.WithLabelValues("same").Inc()
		return decision
	}

	if cfg.UseLLMConfirmation && llm != nil {
		prompt := fmt.Sprintf(topicConfirmPromptTemplate, in.TopicSummary, in.Message)
		resp, err := llm.Complete(ctx, "topic_confirm", prompt)
		if err == nil {
			resp = strings.TrimSpace(resp)
			confirmed := strings.HasPrefix(strings.ToUpper(resp), "NEW:")
			decision.LLMConfirmed = &confirmed
			if !confirmed {
				log.Debug().Msg("model says same topic despite low similarity")
				metrics.TopicDecisions.WithLabelValues("llm_same").Inc()
				return decision
			}
			decision.ShouldSplit = true
			decision.NewTopicName = strings.TrimSpace(resp[len("NEW:"):])
			decision.Confidence = 1 - similarity
			metrics.TopicDecisions.WithLabelValues("split").Inc()
			return decision
		}
		log.Warn().Err(err).Msg("topic confirmation failed, using embedding decision")
	}

	decision.ShouldSplit = true
	decision.NewTopicName = defaultNewTopicName
	decision.Confidence = 1 - similarity
	metrics.TopicDecisions.WithLabelValues("split").Inc()
	return decision
}
