package tui

import (
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"jaco-backend/internal/models"
	"jaco-backend/pkg/jacoclient"
)

type intentLog struct {
	sends    []SendIntent
	combines []CombineIntent
	discards []DiscardIntent
}

func (l *intentLog) handlers() PanelHandlers {
	pending := func() tea.Msg { return nil }
	return PanelHandlers{
		OnSend:    func(i SendIntent) tea.Cmd { l.sends = append(l.sends, i); return pending },
		OnCombine: func(i CombineIntent) tea.Cmd { l.combines = append(l.combines, i); return pending },
		OnDiscard: func(i DiscardIntent) tea.Cmd { l.discards = append(l.discards, i); return pending },
	}
}

func TestPanel_WhitespaceSubmitIsNoop(t *testing.T) {
	var log intentLog
	p := NewSideChatPanel(PanelOptions{Handlers: log.handlers()})
	p.Open(openSideChat())

	p.SetInput("   ")
	require.Nil(t, p.Submit())
	require.Nil(t, p.Update(tea.KeyMsg{Type: tea.KeyEnter}))

	require.Empty(t, log.sends)
	require.False(t, p.Sending())
}

func TestPanel_SubmitEmitsAndClears(t *testing.T) {
	var log intentLog
	p := NewSideChatPanel(PanelOptions{Handlers: log.handlers()})
	sc := openSideChat()
	p.Open(sc)

	p.SetInput("hello")
	cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	require.Equal(t, []SendIntent{{SideChatID: sc.ID, Content: "hello"}}, log.sends)
	require.Empty(t, p.InputValue())
	require.True(t, p.Sending())

	p.Update(SendResult{SideChatID: sc.ID})
	require.False(t, p.Sending())
}

func TestPanel_SubmitKeepsSurroundingWhitespace(t *testing.T) {
	var log intentLog
	p := NewSideChatPanel(PanelOptions{Handlers: log.handlers()})
	sc := openSideChat()
	p.Open(sc)

	p.SetInput("  hello  ")
	require.NotNil(t, p.Submit())

	require.Equal(t, []SendIntent{{SideChatID: sc.ID, Content: "  hello  "}}, log.sends)
}

func TestPanel_TypingBuildsInput(t *testing.T) {
	p := NewSideChatPanel(PanelOptions{})
	p.Open(openSideChat())

	p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("why")})
	p.Update(tea.KeyMsg{Type: tea.KeyEnter, Alt: true})
	p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("200C")})

	require.Equal(t, "why\n200C", p.InputValue())
}

func TestPanel_CombineAndDiscardExcludeEachOther(t *testing.T) {
	var log intentLog
	p := NewSideChatPanel(PanelOptions{Handlers: log.handlers()})
	sc := openSideChat()
	p.Open(sc)

	require.NotNil(t, p.Combine())
	require.True(t, p.Combining())
	require.Nil(t, p.Discard())
	require.Nil(t, p.Combine())
	require.Len(t, log.combines, 1)
	require.Empty(t, log.discards)

	// send stays available
	p.SetInput("one more thing")
	require.NotNil(t, p.Submit())

	p.Update(CombineResult{SideChatID: sc.ID, Err: errBackend})
	require.False(t, p.Combining())
	require.True(t, p.IsOpen(), "event-driven panel is closed by the host")

	require.NotNil(t, p.Discard())
	require.True(t, p.Discarding())
	require.Nil(t, p.Combine())
	require.Len(t, log.discards, 1)
}

func TestPanel_EventDrivenStaysOpenOnSuccess(t *testing.T) {
	var log intentLog
	p := NewSideChatPanel(PanelOptions{Handlers: log.handlers()})
	sc := openSideChat()
	p.Open(sc)

	p.Combine()
	cmd := p.Update(CombineResult{SideChatID: sc.ID, SideChat: sc})
	require.Nil(t, cmd)
	require.True(t, p.IsOpen())
	require.False(t, p.Combining())
}

func TestPanel_SelfContainedSendAppendsReply(t *testing.T) {
	backend := &fakeBackend{}
	p := NewSideChatPanel(PanelOptions{Backend: backend, Token: "tok"})
	sc := openSideChat()
	p.Open(sc)

	p.SetInput("why 200C?")
	cmd := p.Submit()
	require.NotNil(t, cmd)
	require.True(t, p.Sending())

	p.Update(cmd())
	require.False(t, p.Sending())
	require.Len(t, p.SideChat().Messages, 2)
	require.Equal(t, models.RoleUser, p.SideChat().Messages[0].Role)
	require.Equal(t, "why 200C?", p.SideChat().Messages[0].Content)
	require.Equal(t, models.RoleAssistant, p.SideChat().Messages[1].Role)
	require.Equal(t, []jacoclient.AddMessageRequest{{Role: "user", Content: "why 200C?"}}, backend.added)
	require.Contains(t, p.View(), "why 200C?")
}

func TestPanel_SelfContainedSendFailureResetsFlag(t *testing.T) {
	backend := &fakeBackend{addErr: errBackend}
	p := NewSideChatPanel(PanelOptions{Backend: backend})
	p.Open(openSideChat())

	p.SetInput("hi")
	cmd := p.Submit()
	p.Update(cmd())

	require.False(t, p.Sending())
	require.Empty(t, p.SideChat().Messages)
	require.Contains(t, p.View(), "Send failed")
}

func TestPanel_SelfContainedCombineCloses(t *testing.T) {
	backend := &fakeBackend{}
	p := NewSideChatPanel(PanelOptions{Backend: backend})
	sc := openSideChat()
	p.Open(sc)

	cmd := p.Combine()
	closeCmd := p.Update(cmd())

	require.False(t, p.IsOpen())
	require.False(t, p.Combining())
	require.Equal(t, 1, backend.combined)

	closed, ok := closeCmd().(PanelClosedMsg)
	require.True(t, ok)
	require.Equal(t, models.SideChatCombined, closed.Reason)
	require.Equal(t, sc.ID, closed.SideChatID)
	require.NotNil(t, closed.SideChat.CombinedStepContent)
}

func TestPanel_SelfContainedCombineFailureStaysOpen(t *testing.T) {
	backend := &fakeBackend{combineErr: errBackend}
	p := NewSideChatPanel(PanelOptions{Backend: backend})
	p.Open(openSideChat())

	cmd := p.Combine()
	require.Nil(t, p.Update(cmd()))

	require.True(t, p.IsOpen())
	require.False(t, p.Combining())
	require.NotNil(t, p.Discard(), "discard is available again")
}

func TestPanel_SelfContainedDiscardCloses(t *testing.T) {
	backend := &fakeBackend{}
	p := NewSideChatPanel(PanelOptions{Backend: backend})
	p.Open(openSideChat())

	cmd := p.Discard()
	closeCmd := p.Update(cmd())

	require.False(t, p.IsOpen())
	require.Equal(t, 1, backend.deleted)
	closed := closeCmd().(PanelClosedMsg)
	require.Equal(t, models.SideChatDiscarded, closed.Reason)
}

func TestPanel_AutoScrollsToLatest(t *testing.T) {
	p := NewSideChatPanel(PanelOptions{Width: 60, Height: 16})
	sc := openSideChat()
	p.Open(sc)

	for i := 0; i < 30; i++ {
		m := jacoclient.SideChatMessage{Role: models.RoleUser, Content: fmt.Sprintf("message %d", i)}
		p.Update(SendResult{SideChatID: sc.ID, Message: &m})
	}

	require.True(t, p.viewport.AtBottom())
	require.Contains(t, p.viewport.View(), "message 29")
}

func TestPanel_ClosedIgnoresInput(t *testing.T) {
	var log intentLog
	p := NewSideChatPanel(PanelOptions{Handlers: log.handlers()})

	require.False(t, p.IsOpen())
	require.Nil(t, p.Update(tea.KeyMsg{Type: tea.KeyEnter}))
	require.Nil(t, p.Combine())
	require.Empty(t, p.View())
}

func TestPanel_IgnoresResultsForOtherSideChat(t *testing.T) {
	var log intentLog
	p := NewSideChatPanel(PanelOptions{Handlers: log.handlers()})
	p.Open(openSideChat())
	p.Combine()

	p.Update(CombineResult{SideChatID: openSideChat().ID})
	require.True(t, p.Combining())
}
