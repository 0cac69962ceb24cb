package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"jaco-backend/internal/countdown"
	"jaco-backend/pkg/jacoclient"
)

const bannerTick = 50 * time.Millisecond

// BannerHandlers run when the countdown confirms the split or the user cancels it.
type BannerHandlers struct {
	OnConfirm func(jacoclient.SplitDecision) tea.Cmd
	OnCancel  func(jacoclient.SplitDecision) tea.Cmd
}

type bannerConfirmedMsg struct{ gen int }

type bannerTickMsg struct{ gen int }

// TopicSplitBanner announces a detected topic change and splits the chat
// unless the user objects before the countdown runs out.
type TopicSplitBanner struct {
	handlers BannerHandlers
	timeout  time.Duration

	decision  jacoclient.SplitDecision
	timer     *countdown.Timer
	confirmed chan struct{}
	gen       int
	visible   bool
	progress  float64
	width     int
}

// NewTopicSplitBanner uses timeout when the decision carries none; zero means the default.
func NewTopicSplitBanner(handlers BannerHandlers, timeout time.Duration) *TopicSplitBanner {
	if timeout <= 0 {
		timeout = countdown.DefaultTimeout
	}
	return &TopicSplitBanner{handlers: handlers, timeout: timeout, width: 80}
}

func (b *TopicSplitBanner) Visible() bool { return b.visible }

func (b *TopicSplitBanner) Progress() float64 { return b.progress }

func (b *TopicSplitBanner) SetWidth(w int) { b.width = w }

// Show starts a fresh countdown for decision, tearing down any previous one.
func (b *TopicSplitBanner) Show(decision jacoclient.SplitDecision) tea.Cmd {
	b.Stop()

	timeout := b.timeout
	if decision.SplitTimeoutMs > 0 {
		timeout = time.Duration(decision.SplitTimeoutMs) * time.Millisecond
	}

	b.gen++
	b.decision = decision
	b.visible = true
	b.progress = 100
	b.timer = countdown.New(countdown.Options{Timeout: timeout, Tick: bannerTick})
	confirmed := make(chan struct{}, 1)
	b.confirmed = confirmed

	b.timer.Start(context.Background(), countdown.Handlers{
		OnConfirm: func() { confirmed <- struct{}{} },
	})

	return tea.Batch(b.waitForConfirm(), b.tick())
}

// waitForConfirm resolves to a confirmation, or to nil once the timer ends any other way.
func (b *TopicSplitBanner) waitForConfirm() tea.Cmd {
	timer, confirmed, gen := b.timer, b.confirmed, b.gen
	return func() tea.Msg {
		select {
		case <-confirmed:
			return bannerConfirmedMsg{gen: gen}
		case <-timer.Done():
			select {
			case <-confirmed:
				return bannerConfirmedMsg{gen: gen}
			default:
				return nil
			}
		}
	}
}

func (b *TopicSplitBanner) tick() tea.Cmd {
	gen := b.gen
	return tea.Tick(bannerTick, func(time.Time) tea.Msg { return bannerTickMsg{gen: gen} })
}

// Cancel aborts a running countdown. No confirmation can follow.
func (b *TopicSplitBanner) Cancel() tea.Cmd {
	if b.timer == nil || !b.timer.Cancel() {
		return nil
	}
	b.visible = false
	if b.handlers.OnCancel != nil {
		return b.handlers.OnCancel(b.decision)
	}
	return nil
}

// Stop tears the countdown down silently.
func (b *TopicSplitBanner) Stop() {
	if b.timer != nil {
		b.timer.Stop()
	}
	b.visible = false
}

func (b *TopicSplitBanner) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case bannerConfirmedMsg:
		if msg.gen != b.gen || !b.visible || b.timer.State() != countdown.Confirmed {
			return nil
		}
		b.visible = false
		b.progress = 0
		if b.handlers.OnConfirm != nil {
			return b.handlers.OnConfirm(b.decision)
		}

	case bannerTickMsg:
		if msg.gen != b.gen || !b.visible {
			return nil
		}
		b.progress = b.timer.Progress()
		return b.tick()

	case tea.KeyMsg:
		if !b.visible {
			return nil
		}
		switch msg.String() {
		case "esc", "ctrl+k":
			return b.Cancel()
		}
	}
	return nil
}

func (b *TopicSplitBanner) View() string {
	if !b.visible {
		return ""
	}

	name := b.decision.NewTopicName
	if name == "" {
		name = "a new topic"
	}
	secs := b.progress / 100 * float64(b.timeoutFor()) / float64(time.Second)

	text := fmt.Sprintf("New topic detected: %s. Moving to a new chat in %.1fs", name, secs)
	barWidth := b.width - 6
	if barWidth < 10 {
		barWidth = 10
	}
	return bannerStyle.Render(text + "\n" + progressBar(b.progress, barWidth) + "\n" + hintStyle.Render("esc keep talking here"))
}

func (b *TopicSplitBanner) timeoutFor() time.Duration {
	if b.timer != nil {
		return b.timer.Timeout()
	}
	return b.timeout
}

func progressBar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return barFullStyle.Render(strings.Repeat("█", filled)) + barEmptyStyle.Render(strings.Repeat("░", width-filled))
}
