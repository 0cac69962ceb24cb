package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"jaco-backend/internal/models"
	"jaco-backend/pkg/jacoclient"
)

func typeInto(a *App, s string) {
	a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestApp_TopicShiftShowsBanner(t *testing.T) {
	backend := &fakeBackend{decision: &jacoclient.SplitDecision{ShouldSplit: true, NewTopicName: "Bread", SplitTimeoutMs: 5000}}
	a := NewApp(backend, "tok", uuid.New())

	typeInto(a, "how do I bake bread?")
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	a.Update(cmd())
	require.True(t, a.banner.Visible())
	defer a.banner.Stop()

	_, cmd = a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.Nil(t, cmd)
	require.False(t, a.banner.Visible())
	require.Equal(t, "Staying in this chat", a.status)
}

func TestApp_ConfirmedSplitQueuesJob(t *testing.T) {
	backend := &fakeBackend{}
	a := NewApp(backend, "tok", uuid.New())
	a.lastMessage = "how do I bake bread?"

	cmd := a.onSplitConfirmed(jacoclient.SplitDecision{NewTopicName: "Bread", Confidence: 0.7})
	a.Update(cmd())

	require.Len(t, backend.splits, 1)
	require.Equal(t, "how do I bake bread?", backend.splits[0].TriggeringMessage)
	require.Equal(t, "Bread", backend.splits[0].NewTopic)
	require.Contains(t, a.status, "Split queued")
}

func TestApp_SameTopic(t *testing.T) {
	backend := &fakeBackend{decision: &jacoclient.SplitDecision{SimilarityScore: 0.91}}
	a := NewApp(backend, "tok", uuid.New())

	typeInto(a, "and the oven?")
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	a.Update(cmd())

	require.False(t, a.banner.Visible())
	require.Contains(t, a.status, "Same topic")
}

func TestApp_OpenSideChatNeedsStep(t *testing.T) {
	a := NewApp(&fakeBackend{}, "tok", uuid.New())

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	require.Nil(t, cmd)
	require.Contains(t, a.status, "Load a step first")
}

func TestApp_StepThenSideChat(t *testing.T) {
	backend := &fakeBackend{next: &jacoclient.NextStep{
		Content:     "2. Preheat the oven to 200C.",
		StepContext: models.StepContext{CurrentStep: 2, TotalStepsEstimated: 3},
	}}
	a := NewApp(backend, "tok", uuid.New())

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	a.Update(cmd())
	require.Equal(t, "2. Preheat the oven to 200C.", a.stepContent)

	_, cmd = a.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	require.NotNil(t, cmd)
	a.Update(cmd())
	require.True(t, a.panel.IsOpen())
	require.Equal(t, 2, a.panel.SideChat().StepNumber)

	// combine through the panel and fold the result back into the transcript
	_, cmd = a.Update(tea.KeyMsg{Type: tea.KeyCtrlG})
	_, closeCmd := a.Update(cmd())
	a.Update(closeCmd())

	require.False(t, a.panel.IsOpen())
	require.Equal(t, "Preheat to 200C so the crust browns.", a.stepContent)
	require.Equal(t, "Side chat combined into the step", a.status)
}
