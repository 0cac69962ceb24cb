package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"jaco-backend/internal/models"
)

func TestCosineSimilarity(t *testing.T) {
	require.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-6)
	require.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	require.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	require.Zero(t, CosineSimilarity(nil, nil))
	require.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	require.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestRunningTopicEmbedding(t *testing.T) {
	require.Nil(t, RunningTopicEmbedding(nil, 0.8, 5))

	// most recent weight 1, previous 0.5: (1*[0,1] + 0.5*[1,0]) / 1.5
	emb := RunningTopicEmbedding([][]float32{{9, 9}, {1, 0}, {0, 1}}, 0.5, 2)
	require.InDelta(t, 1.0/3.0, emb[0], 1e-6)
	require.InDelta(t, 2.0/3.0, emb[1], 1e-6)

	single := RunningTopicEmbedding([][]float32{{3, 4}}, 0.8, 5)
	require.Equal(t, []float32{3, 4}, single)
}

func topicInput(count int) TopicInput {
	return TopicInput{
		Message:      "how do I bake bread?",
		Embedding:    []float32{0, 1},
		History:      [][]float32{{1, 0}, {1, 0}},
		TopicSummary: "postgres setup",
		MessageCount: count,
	}
}

func TestClassifyTopicShift_TooEarly(t *testing.T) {
	d := ClassifyTopicShift(context.Background(), topicInput(2), models.DefaultTopicConfig(), nil)
	require.False(t, d.ShouldSplit)
	require.Equal(t, 1.0, d.SimilarityScore)
	require.Equal(t, 5000, d.SplitTimeoutMs)
}

func TestClassifyTopicShift_SimilarEnough(t *testing.T) {
	in := topicInput(5)
	in.Embedding = []float32{1, 0.1}
	llm := &stubLLM{reply: "NEW: bread"}

	d := ClassifyTopicShift(context.Background(), in, models.DefaultTopicConfig(), llm)
	require.False(t, d.ShouldSplit)
	require.Greater(t, d.SimilarityScore, 0.65)
	require.Empty(t, llm.prompts)
}

func TestClassifyTopicShift_LLMConfirms(t *testing.T) {
	llm := &stubLLM{reply: "  NEW: Baking bread  "}
	d := ClassifyTopicShift(context.Background(), topicInput(5), models.DefaultTopicConfig(), llm)
	require.True(t, d.ShouldSplit)
	require.Equal(t, "Baking bread", d.NewTopicName)
	require.NotNil(t, d.LLMConfirmed)
	require.True(t, *d.LLMConfirmed)
	require.InDelta(t, 1.0, d.Confidence, 1e-6)
	require.Len(t, llm.prompts, 1)
	require.Contains(t, llm.prompts[0], `"postgres setup"`)
	require.Contains(t, llm.prompts[0], `"how do I bake bread?"`)
}

func TestClassifyTopicShift_LLMSaysSame(t *testing.T) {
	d := ClassifyTopicShift(context.Background(), topicInput(5), models.DefaultTopicConfig(), &stubLLM{reply: "SAME"})
	require.False(t, d.ShouldSplit)
	require.NotNil(t, d.LLMConfirmed)
	require.False(t, *d.LLMConfirmed)
}

func TestClassifyTopicShift_FallsBackToEmbedding(t *testing.T) {
	d := ClassifyTopicShift(context.Background(), topicInput(5), models.DefaultTopicConfig(), &stubLLM{err: errors.New("down")})
	require.True(t, d.ShouldSplit)
	require.Equal(t, "New Topic", d.NewTopicName)
	require.Nil(t, d.LLMConfirmed)

	cfg := models.DefaultTopicConfig()
	cfg.UseLLMConfirmation = false
	llm := &stubLLM{reply: "SAME"}
	d = ClassifyTopicShift(context.Background(), topicInput(5), cfg, llm)
	require.True(t, d.ShouldSplit)
	require.Equal(t, "New Topic", d.NewTopicName)
	require.Empty(t, llm.prompts)
}
