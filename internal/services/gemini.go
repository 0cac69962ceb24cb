package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"jaco-backend/internal/metrics"
)

// LLM is the text-completion surface the side chat, step and topic code needs.
// purpose is a short label used for metrics and logs ("combine", "reply", ...).
type LLM interface {
	Complete(ctx context.Context, purpose, prompt string) (string, error)
}

// Embedder turns text into a vector for topic tracking.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type GeminiService struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	embedding *genai.EmbeddingModel
	limiter   *rate.Limiter
	rateChan  chan struct{} // Concurrency slots
}

func NewGeminiService(apiKey, modelName, embeddingModel string, requestsPerMin, concurrentReqs int) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.3)
	model.SetTopP(0.95)

	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	if requestsPerMin <= 0 {
		requestsPerMin = 60
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMin)), concurrentReqs)

	return &GeminiService{
		client:    client,
		model:     model,
		embedding: client.EmbeddingModel(embeddingModel),
		limiter:   limiter,
		rateChan:  rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until both a concurrency slot and a per-minute token are available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		s.releaseRate()
		return err
	}
	return nil
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

func (s *GeminiService) Complete(ctx context.Context, purpose, prompt string) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	start := time.Now()
	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	metrics.LLMLatency.WithLabelValues(purpose).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMRequests.WithLabelValues(purpose, metrics.OutcomeError).Inc()
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Warn().Str("purpose", purpose).Int("candidate", i).
				Str("finish_reason", cand.FinishReason.String()).
				Msg("gemini stopped early")
		}
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		metrics.LLMRequests.WithLabelValues(purpose, metrics.OutcomeError).Inc()
		return "", fmt.Errorf("empty response from Gemini")
	}
	metrics.LLMRequests.WithLabelValues(purpose, metrics.OutcomeSuccess).Inc()
	return text, nil
}

func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer s.releaseRate()

	resp, err := s.embedding.EmbedContent(ctx, genai.Text(text))
	metrics.LLMRequests.WithLabelValues("embed", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("Gemini embedding error: %w", err)
	}
	if resp == nil || resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding from Gemini")
	}
	return resp.Embedding.Values, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
