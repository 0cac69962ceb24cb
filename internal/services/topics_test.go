package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"jaco-backend/internal/models"
)

type topicFixture struct {
	svc        *TopicService
	chats      *memChats
	boundaries *memBoundaries
	jobs       *memJobs
	queue      *memQueue
	pub        *recordingPublisher
	embedder   *stubEmbedder
	user       uuid.UUID
	chat       *models.Chat
}

func newTopicFixture(llm LLM) *topicFixture {
	chats := newMemChats()
	f := &topicFixture{
		chats:      chats,
		boundaries: &memBoundaries{chats: chats},
		jobs:       newMemJobs(),
		queue:      &memQueue{},
		pub:        &recordingPublisher{},
		embedder:   &stubEmbedder{vec: []float32{0, 1}},
		user:       uuid.New(),
	}
	f.chat = &models.Chat{
		ID:     uuid.New(),
		UserID: f.user,
		Title:  "Postgres setup",
		Meta:   models.DefaultJacoMeta(),
		Messages: []models.ChatMessage{
			{Role: models.RoleUser, Content: "install postgres"},
			{Role: models.RoleAssistant, Content: "use brew"},
			{Role: models.RoleUser, Content: "create a db"},
		},
		MessageEmbeddings: [][]float32{{1, 0}, {1, 0}},
	}
	f.chats.put(f.chat)
	f.svc = NewTopicService(f.chats, f.boundaries, f.jobs, f.queue, llm, f.embedder, f.pub, models.DefaultTopicConfig())
	return f
}

func TestTopicClassify_Split(t *testing.T) {
	f := newTopicFixture(&stubLLM{reply: "NEW: Baking bread"})

	d, err := f.svc.Classify(context.Background(), f.user, f.chat.ID, models.ClassifyTopicRequest{Message: "how do I bake bread?"})
	require.NoError(t, err)
	require.True(t, d.ShouldSplit)
	require.Equal(t, "Baking bread", d.NewTopicName)
	require.Equal(t, 5000, d.SplitTimeoutMs)

	stored, _ := f.chats.GetByID(context.Background(), f.chat.ID)
	require.Len(t, stored.Messages, 4)
	require.Len(t, stored.MessageEmbeddings, 3)
}

func TestTopicClassify_Errors(t *testing.T) {
	f := newTopicFixture(nil)
	ctx := context.Background()

	_, err := f.svc.Classify(ctx, f.user, f.chat.ID, models.ClassifyTopicRequest{Message: " "})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = f.svc.Classify(ctx, uuid.New(), f.chat.ID, models.ClassifyTopicRequest{Message: "x"})
	var fErr *ForbiddenError
	require.ErrorAs(t, err, &fErr)

	f.embedder.err = errBoom
	_, err = f.svc.Classify(ctx, f.user, f.chat.ID, models.ClassifyTopicRequest{Message: "x"})
	var aiErr *AIError
	require.ErrorAs(t, err, &aiErr)
}

func TestTopicRequestSplit(t *testing.T) {
	f := newTopicFixture(nil)
	ctx := context.Background()
	req := models.TopicSplitRequest{TriggeringMessage: "bread?", NewTopic: "Bread", OldTopic: "Postgres", Confidence: 0.6}

	job, err := f.svc.RequestSplit(ctx, f.user, f.chat.ID, req)
	require.NoError(t, err)
	require.Equal(t, models.JobTypeTopicSplit, job.Type)
	require.Equal(t, f.chat.ID, job.ReferenceID)
	require.Len(t, f.queue.jobs, 1)

	var decoded models.TopicSplitRequest
	require.NoError(t, json.Unmarshal(job.ConfigJSON, &decoded))
	require.Equal(t, req, decoded)

	_, err = f.svc.RequestSplit(ctx, f.user, uuid.New(), req)
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)

	f.queue.err = errBoom
	_, err = f.svc.RequestSplit(ctx, f.user, f.chat.ID, req)
	require.Error(t, err)
	require.Equal(t, models.JobStatusFailed, f.jobs.statuses[len(f.jobs.statuses)-1])
}

func TestTopicExecuteSplit(t *testing.T) {
	llm := &stubLLM{replies: map[string]string{"split_summary": "set up postgres", "title": "Fresh title"}}
	f := newTopicFixture(llm)
	ctx := context.Background()

	job, err := f.svc.RequestSplit(ctx, f.user, f.chat.ID, models.TopicSplitRequest{TriggeringMessage: "bread?", NewTopic: "Bread", OldTopic: "Postgres"})
	require.NoError(t, err)

	res, err := f.svc.ExecuteSplit(ctx, job)
	require.NoError(t, err)
	require.Equal(t, "Fresh title", res.NewChatTitle)
	require.Equal(t, "set up postgres", res.ContextSummary)

	newChat, err := f.chats.GetByID(ctx, res.NewChatID)
	require.NoError(t, err)
	require.Equal(t, f.user, newChat.UserID)
	require.Equal(t, "Bread", *newChat.Meta.TopicSummary)
	require.Equal(t, "bread?", newChat.Messages[len(newChat.Messages)-1].Content)

	original, _ := f.chats.GetByID(ctx, f.chat.ID)
	require.Equal(t, "Fresh title", original.Title)

	boundaries, err := f.svc.Boundaries(ctx, f.user, f.chat.ID)
	require.NoError(t, err)
	require.Len(t, boundaries, 1)
	require.Equal(t, res.NewChatID, boundaries[0].NewChatID)

	stored, err := f.svc.GetJob(ctx, f.user, job.ID)
	require.NoError(t, err)
	require.Equal(t, res.NewChatID, *stored.ResultID)

	require.Equal(t, models.WSTopicSplitCompleted, f.pub.messages[0].Type)
}

func TestTopicGetJob_Ownership(t *testing.T) {
	f := newTopicFixture(nil)
	ctx := context.Background()
	job, err := f.svc.RequestSplit(ctx, f.user, f.chat.ID, models.TopicSplitRequest{TriggeringMessage: "x"})
	require.NoError(t, err)

	_, err = f.svc.GetJob(ctx, uuid.New(), job.ID)
	var fErr *ForbiddenError
	require.ErrorAs(t, err, &fErr)

	_, err = f.svc.GetJob(ctx, f.user, uuid.New())
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestTopicExecuteSplit_RetryAfterStoreFailureCreatesOneChat(t *testing.T) {
	llm := &stubLLM{replies: map[string]string{"split_summary": "set up postgres", "title": "Fresh title"}}
	f := newTopicFixture(llm)
	ctx := context.Background()
	f.boundaries.failures = 1
	f.boundaries.err = errBoom

	job, err := f.svc.RequestSplit(ctx, f.user, f.chat.ID, models.TopicSplitRequest{TriggeringMessage: "bread?", NewTopic: "Bread", OldTopic: "Postgres"})
	require.NoError(t, err)

	_, err = f.svc.ExecuteSplit(ctx, job)
	require.ErrorIs(t, err, errBoom)
	require.Len(t, f.chats.chats, 1, "a failed split leaves no chat behind")

	first, err := f.svc.ExecuteSplit(ctx, job)
	require.NoError(t, err)
	second, err := f.svc.ExecuteSplit(ctx, job)
	require.NoError(t, err)

	require.Equal(t, first.NewChatID, second.NewChatID)
	require.Len(t, f.chats.chats, 2)
	require.Len(t, f.boundaries.list, 1)
	require.Equal(t, first.NewChatID, f.boundaries.list[0].NewChatID)
}
