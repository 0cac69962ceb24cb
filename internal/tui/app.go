package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"jaco-backend/internal/models"
	"jaco-backend/pkg/jacoclient"
)

// Backend is everything the app needs from the API. *jacoclient.Client satisfies it.
type Backend interface {
	PanelBackend
	StepSource
	CreateSideChat(ctx context.Context, token string, req jacoclient.CreateSideChatRequest) (*jacoclient.SideChat, error)
	ListSideChatsByChat(ctx context.Context, token string, chatID uuid.UUID) ([]jacoclient.SideChat, error)
	ClassifyTopic(ctx context.Context, token string, chatID uuid.UUID, message string) (*jacoclient.SplitDecision, error)
	ConfirmTopicSplit(ctx context.Context, token string, chatID uuid.UUID, req jacoclient.TopicSplit) (*jacoclient.Job, error)
}

type sideChatsLoadedMsg struct {
	list []jacoclient.SideChat
	err  error
}

type sideChatCreatedMsg struct {
	sideChat *jacoclient.SideChat
	err      error
}

type classifiedMsg struct {
	message  string
	decision *jacoclient.SplitDecision
	err      error
}

type splitQueuedMsg struct {
	job *jacoclient.Job
	err error
}

// App hosts the step controls, the topic banner and a self-contained side chat
// panel over one parent chat.
type App struct {
	backend Backend
	token   string
	chatID  uuid.UUID

	input  textinput.Model
	steps  *StepControls
	panel  *SideChatPanel
	banner *TopicSplitBanner

	transcript  []string
	stepContent string
	lastMessage string
	status      string
	width       int
	height      int
}

func NewApp(backend Backend, token string, chatID uuid.UUID) *App {
	ti := textinput.New()
	ti.Placeholder = "Message (enter to check for a topic change)"
	ti.Focus()

	a := &App{
		backend: backend,
		token:   token,
		chatID:  chatID,
		input:   ti,
		width:   80,
		height:  24,
	}
	a.steps = NewStepControls(backend, token, chatID, StepHandlers{
		OnStep:     a.onStep,
		OnAllSteps: a.onAllSteps,
	})
	a.panel = NewSideChatPanel(PanelOptions{Backend: backend, Token: token})
	a.banner = NewTopicSplitBanner(BannerHandlers{
		OnConfirm: a.onSplitConfirmed,
		OnCancel:  a.onSplitCancelled,
	}, 0)
	return a
}

func (a *App) Init() tea.Cmd {
	backend, token, chatID := a.backend, a.token, a.chatID
	return tea.Batch(textinput.Blink, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		list, err := backend.ListSideChatsByChat(ctx, token, chatID)
		return sideChatsLoadedMsg{list: list, err: err}
	})
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.input.Width = msg.Width - 4
		a.panel.SetSize(msg.Width, msg.Height/2)
		a.banner.SetWidth(msg.Width)
		return a, nil

	case tea.KeyMsg:
		return a, a.handleKey(msg)

	case sideChatsLoadedMsg:
		if msg.err != nil {
			log.Warn().Err(msg.err).Msg("failed to list side chats")
			a.status = "Could not load side chats"
			return a, nil
		}
		open := 0
		for _, sc := range msg.list {
			if sc.IsOpen() {
				open++
			}
		}
		a.status = fmt.Sprintf("%d side chats, %d open", len(msg.list), open)
		return a, nil

	case sideChatCreatedMsg:
		if msg.err != nil {
			log.Warn().Err(msg.err).Msg("failed to create side chat")
			a.status = "Could not open side chat: " + msg.err.Error()
			return a, nil
		}
		return a, a.panel.Open(msg.sideChat)

	case PanelClosedMsg:
		switch msg.Reason {
		case models.SideChatCombined:
			if msg.SideChat != nil && msg.SideChat.CombinedStepContent != nil {
				a.stepContent = *msg.SideChat.CombinedStepContent
				a.appendTranscript(fmt.Sprintf("Step %d (updated):\n%s", msg.SideChat.StepNumber, a.stepContent))
			}
			a.status = "Side chat combined into the step"
		default:
			a.status = "Side chat discarded"
		}
		return a, nil

	case classifiedMsg:
		if msg.err != nil {
			log.Warn().Err(msg.err).Msg("topic classification failed")
			a.status = "Topic check failed"
			return a, nil
		}
		if msg.decision.ShouldSplit {
			return a, a.banner.Show(*msg.decision)
		}
		a.status = fmt.Sprintf("Same topic (similarity %.2f)", msg.decision.SimilarityScore)
		return a, nil

	case splitQueuedMsg:
		if msg.err != nil {
			log.Warn().Err(msg.err).Msg("topic split request failed")
			a.status = "Split failed: " + msg.err.Error()
			return a, nil
		}
		a.status = fmt.Sprintf("Split queued (job %s)", msg.job.ID)
		return a, nil
	}

	return a, tea.Batch(a.steps.Update(msg), a.panel.Update(msg), a.banner.Update(msg))
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		a.banner.Stop()
		return tea.Quit
	}

	if a.banner.Visible() {
		if cmd := a.banner.Update(msg); cmd != nil || !a.banner.Visible() {
			return cmd
		}
	}

	if a.panel.IsOpen() {
		if msg.String() == "esc" {
			a.panel.Close()
			a.status = "Side chat left open"
			return nil
		}
		return a.panel.Update(msg)
	}

	switch msg.String() {
	case "ctrl+n":
		return a.steps.Next()
	case "ctrl+a":
		return a.steps.ShowAll()
	case "ctrl+o":
		return a.openSideChat()
	case "enter":
		return a.submit()
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return cmd
}

func (a *App) openSideChat() tea.Cmd {
	current, _ := a.steps.Progress()
	if a.stepContent == "" {
		a.status = "Load a step first (ctrl+n)"
		return nil
	}
	backend, token := a.backend, a.token
	req := jacoclient.CreateSideChatRequest{
		ChatID:              a.chatID,
		StepNumber:          current,
		OriginalStepContent: a.stepContent,
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		sc, err := backend.CreateSideChat(ctx, token, req)
		return sideChatCreatedMsg{sideChat: sc, err: err}
	}
}

func (a *App) submit() tea.Cmd {
	content := strings.TrimSpace(a.input.Value())
	if content == "" {
		return nil
	}
	a.input.Reset()
	a.lastMessage = content
	a.appendTranscript("You: " + content)

	backend, token, chatID := a.backend, a.token, a.chatID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		d, err := backend.ClassifyTopic(ctx, token, chatID, content)
		return classifiedMsg{message: content, decision: d, err: err}
	}
}

func (a *App) onStep(step *jacoclient.NextStep) tea.Cmd {
	a.stepContent = step.Content
	a.appendTranscript(fmt.Sprintf("Step %d:\n%s", step.StepContext.CurrentStep, step.Content))
	return nil
}

func (a *App) onAllSteps(plan *jacoclient.AllSteps) tea.Cmd {
	a.appendTranscript("Full plan:\n" + plan.FullPlan)
	return nil
}

func (a *App) onSplitConfirmed(d jacoclient.SplitDecision) tea.Cmd {
	backend, token, chatID := a.backend, a.token, a.chatID
	req := jacoclient.TopicSplit{
		TriggeringMessage: a.lastMessage,
		NewTopic:          d.NewTopicName,
		Confidence:        d.Confidence,
	}
	a.status = "Splitting conversation..."
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		job, err := backend.ConfirmTopicSplit(ctx, token, chatID, req)
		return splitQueuedMsg{job: job, err: err}
	}
}

func (a *App) onSplitCancelled(jacoclient.SplitDecision) tea.Cmd {
	a.status = "Staying in this chat"
	return nil
}

func (a *App) appendTranscript(s string) {
	a.transcript = append(a.transcript, s)
	if len(a.transcript) > 50 {
		a.transcript = a.transcript[len(a.transcript)-50:]
	}
}

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Jaco · chat " + a.chatID.String()[:8]))
	b.WriteString("\n\n")

	lines := a.transcript
	if len(lines) > 6 {
		lines = lines[len(lines)-6:]
	}
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(a.steps.View())
	b.WriteString("\n")

	if v := a.banner.View(); v != "" {
		b.WriteString(v)
		b.WriteString("\n")
	}

	if a.panel.IsOpen() {
		b.WriteString(a.panel.View())
	} else {
		b.WriteString(a.input.View())
		b.WriteString("\n")
		b.WriteString(hintStyle.Render("ctrl+o side chat on this step · ctrl+c quit"))
	}
	if a.status != "" {
		b.WriteString("\n")
		b.WriteString(hintStyle.Render(a.status))
	}
	return b.String()
}
