package tui

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"jaco-backend/internal/models"
	"jaco-backend/pkg/jacoclient"
)

var errBackend = errors.New("backend unavailable")

type fakeBackend struct {
	mu sync.Mutex

	added    []jacoclient.AddMessageRequest
	combined int
	deleted  int

	addErr     error
	replyErr   error
	combineErr error
	deleteErr  error

	next     *jacoclient.NextStep
	nextErr  error
	plan     *jacoclient.AllSteps
	planErr  error
	decision *jacoclient.SplitDecision
	splits   []jacoclient.TopicSplit
}

func (f *fakeBackend) AddSideChatMessage(_ context.Context, _ string, id uuid.UUID, req jacoclient.AddMessageRequest) (*jacoclient.SideChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.added = append(f.added, req)
	return &jacoclient.SideChatMessage{ID: uuid.New(), SideChatID: id, Role: req.Role, Content: req.Content}, nil
}

func (f *fakeBackend) ReplySideChat(_ context.Context, _ string, id uuid.UUID) (*jacoclient.SideChatMessage, error) {
	if f.replyErr != nil {
		return nil, f.replyErr
	}
	return &jacoclient.SideChatMessage{ID: uuid.New(), SideChatID: id, Role: models.RoleAssistant, Content: "**Because** it browns."}, nil
}

func (f *fakeBackend) CombineSideChat(_ context.Context, _ string, id uuid.UUID) (*jacoclient.SideChat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.combineErr != nil {
		return nil, f.combineErr
	}
	f.combined++
	content := "Preheat to 200C so the crust browns."
	return &jacoclient.SideChat{ID: id, StepNumber: 2, Status: models.SideChatCombined, CombinedStepContent: &content}, nil
}

func (f *fakeBackend) DeleteSideChat(_ context.Context, _ string, id uuid.UUID) (*jacoclient.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deleted++
	return &jacoclient.DeleteResult{Status: "ok", ID: id}, nil
}

func (f *fakeBackend) NextStep(context.Context, string, uuid.UUID) (*jacoclient.NextStep, error) {
	return f.next, f.nextErr
}

func (f *fakeBackend) AllSteps(context.Context, string, uuid.UUID) (*jacoclient.AllSteps, error) {
	return f.plan, f.planErr
}

func (f *fakeBackend) CreateSideChat(_ context.Context, _ string, req jacoclient.CreateSideChatRequest) (*jacoclient.SideChat, error) {
	return &jacoclient.SideChat{ID: uuid.New(), ChatID: req.ChatID, StepNumber: req.StepNumber, OriginalStepContent: req.OriginalStepContent, Status: models.SideChatOpen}, nil
}

func (f *fakeBackend) ListSideChatsByChat(context.Context, string, uuid.UUID) ([]jacoclient.SideChat, error) {
	return nil, nil
}

func (f *fakeBackend) ClassifyTopic(context.Context, string, uuid.UUID, string) (*jacoclient.SplitDecision, error) {
	return f.decision, nil
}

func (f *fakeBackend) ConfirmTopicSplit(_ context.Context, _ string, _ uuid.UUID, req jacoclient.TopicSplit) (*jacoclient.Job, error) {
	f.splits = append(f.splits, req)
	return &jacoclient.Job{ID: uuid.New()}, nil
}

func openSideChat() *jacoclient.SideChat {
	return &jacoclient.SideChat{
		ID:                  uuid.New(),
		ChatID:              uuid.New(),
		StepNumber:          2,
		OriginalStepContent: "Preheat the oven to 200C.",
		Status:              models.SideChatOpen,
	}
}
