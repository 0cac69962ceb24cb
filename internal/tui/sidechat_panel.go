package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"jaco-backend/internal/models"
	"jaco-backend/pkg/jacoclient"
)

const requestTimeout = 60 * time.Second

// PanelBackend is what a self-contained panel needs from the API.
// *jacoclient.Client satisfies it.
type PanelBackend interface {
	AddSideChatMessage(ctx context.Context, token string, sideChatID uuid.UUID, req jacoclient.AddMessageRequest) (*jacoclient.SideChatMessage, error)
	ReplySideChat(ctx context.Context, token string, sideChatID uuid.UUID) (*jacoclient.SideChatMessage, error)
	CombineSideChat(ctx context.Context, token string, sideChatID uuid.UUID) (*jacoclient.SideChat, error)
	DeleteSideChat(ctx context.Context, token string, sideChatID uuid.UUID) (*jacoclient.DeleteResult, error)
}

// SendIntent carries the input exactly as typed; surrounding whitespace is
// kept so indented or code-formatted messages survive.
type SendIntent struct {
	SideChatID uuid.UUID
	Content    string
}

type CombineIntent struct {
	SideChatID uuid.UUID
}

type DiscardIntent struct {
	SideChatID uuid.UUID
}

// PanelHandlers receive the user's intents in the event-driven variant. The
// returned command should resolve to the matching *Result message so the busy
// flag clears; a nil command means nothing is in flight.
type PanelHandlers struct {
	OnSend    func(SendIntent) tea.Cmd
	OnCombine func(CombineIntent) tea.Cmd
	OnDiscard func(DiscardIntent) tea.Cmd
}

// SendResult reports a sent user message and, when one was requested, the reply.
type SendResult struct {
	SideChatID uuid.UUID
	Message    *jacoclient.SideChatMessage
	Reply      *jacoclient.SideChatMessage
	Err        error
}

type CombineResult struct {
	SideChatID uuid.UUID
	SideChat   *jacoclient.SideChat
	Err        error
}

type DiscardResult struct {
	SideChatID uuid.UUID
	Err        error
}

// PanelClosedMsg is emitted when a self-contained panel closes itself.
type PanelClosedMsg struct {
	SideChatID uuid.UUID
	Reason     string // "combined" | "discarded"
	SideChat   *jacoclient.SideChat
}

type PanelOptions struct {
	Handlers PanelHandlers
	// Backend switches the panel to self-contained mode.
	Backend PanelBackend
	Token   string
	Width   int
	Height  int
}

type SideChatPanel struct {
	opts PanelOptions

	sideChat *jacoclient.SideChat
	input    textarea.Model
	viewport viewport.Model
	renderer *glamour.TermRenderer

	sending    bool
	combining  bool
	discarding bool
	status     string

	width  int
	height int
}

func NewSideChatPanel(opts PanelOptions) *SideChatPanel {
	ta := textarea.New()
	ta.Placeholder = "Ask about this step..."
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("shift+enter", "alt+enter", "ctrl+j"))

	p := &SideChatPanel{
		opts:     opts,
		input:    ta,
		viewport: viewport.New(80, 12),
	}
	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	p.SetSize(width, height)
	return p
}

func (p *SideChatPanel) SetSize(width, height int) {
	p.width = width
	p.height = height

	inner := width - 4
	if inner < 20 {
		inner = 20
	}
	p.input.SetWidth(inner)
	p.viewport.Width = inner
	// header, quote, input, footer and borders
	vh := height - 12
	if vh < 3 {
		vh = 3
	}
	p.viewport.Height = vh

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(inner),
	)
	if err != nil {
		log.Debug().Err(err).Msg("markdown renderer unavailable")
		r = nil
	}
	p.renderer = r
	p.refresh()
}

// Open shows the panel for sc. Busy flags and input start fresh.
func (p *SideChatPanel) Open(sc *jacoclient.SideChat) tea.Cmd {
	p.sideChat = sc
	p.sending, p.combining, p.discarding = false, false, false
	p.status = ""
	p.input.Reset()
	p.refresh()
	p.viewport.GotoBottom()
	return p.input.Focus()
}

func (p *SideChatPanel) Close() {
	p.sideChat = nil
	p.sending, p.combining, p.discarding = false, false, false
	p.status = ""
	p.input.Reset()
	p.input.Blur()
}

func (p *SideChatPanel) IsOpen() bool {
	return p.sideChat != nil
}

func (p *SideChatPanel) SideChat() *jacoclient.SideChat {
	return p.sideChat
}

func (p *SideChatPanel) Sending() bool    { return p.sending }
func (p *SideChatPanel) Combining() bool  { return p.combining }
func (p *SideChatPanel) Discarding() bool { return p.discarding }

func (p *SideChatPanel) InputValue() string {
	return p.input.Value()
}

func (p *SideChatPanel) SetInput(s string) {
	p.input.SetValue(s)
}

func (p *SideChatPanel) selfContained() bool {
	return p.opts.Backend != nil
}

func (p *SideChatPanel) Update(msg tea.Msg) tea.Cmd {
	if !p.IsOpen() {
		return nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.SetSize(msg.Width, msg.Height)
		return nil

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			return p.Submit()
		case "ctrl+g":
			return p.Combine()
		case "ctrl+x":
			return p.Discard()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			p.viewport, cmd = p.viewport.Update(msg)
			return cmd
		}
		var cmd tea.Cmd
		p.input, cmd = p.input.Update(msg)
		return cmd

	case SendResult:
		if msg.SideChatID != p.sideChat.ID {
			return nil
		}
		p.sending = false
		if msg.Message != nil {
			p.appendMessage(*msg.Message)
		}
		if msg.Reply != nil {
			p.appendMessage(*msg.Reply)
		}
		if msg.Err != nil {
			log.Warn().Err(msg.Err).Str("side_chat_id", msg.SideChatID.String()).Msg("side chat send failed")
			p.status = "Send failed: " + msg.Err.Error()
		} else {
			p.status = ""
		}
		return nil

	case CombineResult:
		if msg.SideChatID != p.sideChat.ID {
			return nil
		}
		p.combining = false
		if msg.Err != nil {
			log.Warn().Err(msg.Err).Str("side_chat_id", msg.SideChatID.String()).Msg("side chat combine failed")
			p.status = "Combine failed: " + msg.Err.Error()
			return nil
		}
		if p.selfContained() {
			p.Close()
			return emit(PanelClosedMsg{SideChatID: msg.SideChatID, Reason: models.SideChatCombined, SideChat: msg.SideChat})
		}
		return nil

	case DiscardResult:
		if msg.SideChatID != p.sideChat.ID {
			return nil
		}
		p.discarding = false
		if msg.Err != nil {
			log.Warn().Err(msg.Err).Str("side_chat_id", msg.SideChatID.String()).Msg("side chat discard failed")
			p.status = "Discard failed: " + msg.Err.Error()
			return nil
		}
		if p.selfContained() {
			p.Close()
			return emit(PanelClosedMsg{SideChatID: msg.SideChatID, Reason: models.SideChatDiscarded})
		}
		return nil
	}

	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return cmd
}

// Submit sends the current input. Blank input is ignored and stays put.
func (p *SideChatPanel) Submit() tea.Cmd {
	if !p.IsOpen() || p.sending {
		return nil
	}
	content := p.input.Value()
	if strings.TrimSpace(content) == "" {
		return nil
	}

	p.input.Reset()
	intent := SendIntent{SideChatID: p.sideChat.ID, Content: content}

	var cmd tea.Cmd
	switch {
	case p.selfContained():
		cmd = p.sendCmd(intent)
	case p.opts.Handlers.OnSend != nil:
		cmd = p.opts.Handlers.OnSend(intent)
	}
	p.sending = cmd != nil
	return cmd
}

// Combine and Discard exclude each other; neither starts while either is in flight.
func (p *SideChatPanel) Combine() tea.Cmd {
	if !p.IsOpen() || p.combining || p.discarding {
		return nil
	}
	intent := CombineIntent{SideChatID: p.sideChat.ID}

	var cmd tea.Cmd
	switch {
	case p.selfContained():
		cmd = p.combineCmd(intent)
	case p.opts.Handlers.OnCombine != nil:
		cmd = p.opts.Handlers.OnCombine(intent)
	}
	p.combining = cmd != nil
	return cmd
}

func (p *SideChatPanel) Discard() tea.Cmd {
	if !p.IsOpen() || p.combining || p.discarding {
		return nil
	}
	intent := DiscardIntent{SideChatID: p.sideChat.ID}

	var cmd tea.Cmd
	switch {
	case p.selfContained():
		cmd = p.discardCmd(intent)
	case p.opts.Handlers.OnDiscard != nil:
		cmd = p.opts.Handlers.OnDiscard(intent)
	}
	p.discarding = cmd != nil
	return cmd
}

func (p *SideChatPanel) sendCmd(intent SendIntent) tea.Cmd {
	backend, token := p.opts.Backend, p.opts.Token
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		msg, err := backend.AddSideChatMessage(ctx, token, intent.SideChatID, jacoclient.AddMessageRequest{
			Role:    models.RoleUser,
			Content: intent.Content,
		})
		if err != nil {
			return SendResult{SideChatID: intent.SideChatID, Err: err}
		}
		reply, err := backend.ReplySideChat(ctx, token, intent.SideChatID)
		return SendResult{SideChatID: intent.SideChatID, Message: msg, Reply: reply, Err: err}
	}
}

func (p *SideChatPanel) combineCmd(intent CombineIntent) tea.Cmd {
	backend, token := p.opts.Backend, p.opts.Token
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		sc, err := backend.CombineSideChat(ctx, token, intent.SideChatID)
		return CombineResult{SideChatID: intent.SideChatID, SideChat: sc, Err: err}
	}
}

func (p *SideChatPanel) discardCmd(intent DiscardIntent) tea.Cmd {
	backend, token := p.opts.Backend, p.opts.Token
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		_, err := backend.DeleteSideChat(ctx, token, intent.SideChatID)
		return DiscardResult{SideChatID: intent.SideChatID, Err: err}
	}
}

func (p *SideChatPanel) appendMessage(m jacoclient.SideChatMessage) {
	p.sideChat.Messages = append(p.sideChat.Messages, m)
	p.refresh()
	p.viewport.GotoBottom()
}

func (p *SideChatPanel) refresh() {
	if p.sideChat == nil {
		p.viewport.SetContent("")
		return
	}

	var b strings.Builder
	for i, m := range p.sideChat.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		switch m.Role {
		case models.RoleAssistant:
			b.WriteString(p.renderMarkdown(m.Content))
		default:
			b.WriteString(youLabelStyle.Render("You: "))
			b.WriteString(userStyle.Render(m.Content))
			b.WriteString("\n")
		}
	}
	p.viewport.SetContent(b.String())
}

func (p *SideChatPanel) renderMarkdown(s string) string {
	if p.renderer == nil {
		return s + "\n"
	}
	out, err := p.renderer.Render(s)
	if err != nil {
		return s + "\n"
	}
	return out
}

func (p *SideChatPanel) View() string {
	if !p.IsOpen() {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Side chat · step %d", p.sideChat.StepNumber)))
	b.WriteString("\n")
	b.WriteString(stepQuoteStyle.Render(truncate(p.sideChat.OriginalStepContent, 3*p.viewport.Width)))
	b.WriteString("\n\n")
	b.WriteString(p.viewport.View())
	b.WriteString("\n")
	b.WriteString(p.input.View())
	b.WriteString("\n")
	b.WriteString(p.footer())

	return panelStyle.Width(p.width - 2).Render(b.String())
}

func (p *SideChatPanel) footer() string {
	switch {
	case p.combining:
		return busyStyle.Render("Combining into step...")
	case p.discarding:
		return busyStyle.Render("Discarding...")
	case p.sending:
		return busyStyle.Render("Sending...")
	case p.status != "":
		return errorStyle.Render(p.status)
	}
	return hintStyle.Render("enter send · alt+enter newline · ctrl+g combine · ctrl+x discard")
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
