package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"jaco-backend/pkg/jacoclient"
)

// StepSource fetches plan steps. *jacoclient.Client satisfies it.
type StepSource interface {
	NextStep(ctx context.Context, token string, chatID uuid.UUID) (*jacoclient.NextStep, error)
	AllSteps(ctx context.Context, token string, chatID uuid.UUID) (*jacoclient.AllSteps, error)
}

type StepHandlers struct {
	OnStep     func(*jacoclient.NextStep) tea.Cmd
	OnAllSteps func(*jacoclient.AllSteps) tea.Cmd
}

type nextStepMsg struct {
	chatID uuid.UUID
	step   *jacoclient.NextStep
	err    error
}

type allStepsMsg struct {
	chatID uuid.UUID
	plan   *jacoclient.AllSteps
	err    error
}

// StepControls shows plan progress and fetches the next step or the whole plan.
type StepControls struct {
	source   StepSource
	token    string
	chatID   uuid.UUID
	handlers StepHandlers

	current     int
	total       int
	loading     bool
	loadingPlan bool
	status      string
}

func NewStepControls(source StepSource, token string, chatID uuid.UUID, handlers StepHandlers) *StepControls {
	return &StepControls{source: source, token: token, chatID: chatID, handlers: handlers}
}

func (c *StepControls) SetProgress(current, total int) {
	c.current = current
	c.total = total
}

func (c *StepControls) Progress() (current, total int) {
	return c.current, c.total
}

func (c *StepControls) Loading() bool { return c.loading }

func (c *StepControls) Status() string { return c.status }

// Next requests the following step. Disabled while a request is in flight.
func (c *StepControls) Next() tea.Cmd {
	if c.loading {
		return nil
	}
	c.loading = true
	c.status = ""

	source, token, chatID := c.source, c.token, c.chatID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		step, err := source.NextStep(ctx, token, chatID)
		return nextStepMsg{chatID: chatID, step: step, err: err}
	}
}

func (c *StepControls) ShowAll() tea.Cmd {
	if c.loadingPlan {
		return nil
	}
	c.loadingPlan = true
	c.status = ""

	source, token, chatID := c.source, c.token, c.chatID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		plan, err := source.AllSteps(ctx, token, chatID)
		return allStepsMsg{chatID: chatID, plan: plan, err: err}
	}
}

func (c *StepControls) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case nextStepMsg:
		if msg.chatID != c.chatID {
			return nil
		}
		c.loading = false
		if msg.err != nil {
			log.Warn().Err(msg.err).Str("chat_id", c.chatID.String()).Msg("next step failed")
			c.status = "Could not load the next step"
			return nil
		}
		c.current = msg.step.StepContext.CurrentStep
		c.total = msg.step.StepContext.TotalStepsEstimated
		if c.handlers.OnStep != nil {
			return c.handlers.OnStep(msg.step)
		}

	case allStepsMsg:
		if msg.chatID != c.chatID {
			return nil
		}
		c.loadingPlan = false
		if msg.err != nil {
			log.Warn().Err(msg.err).Str("chat_id", c.chatID.String()).Msg("all steps failed")
			c.status = "Could not load the plan"
			return nil
		}
		if c.handlers.OnAllSteps != nil {
			return c.handlers.OnAllSteps(msg.plan)
		}
	}
	return nil
}

func (c *StepControls) View() string {
	progress := fmt.Sprintf("Step %d/%d", c.current, c.total)
	if c.total == 0 {
		progress = fmt.Sprintf("Step %d", c.current)
	}

	next := "[ctrl+n] Next"
	if c.loading {
		next = busyStyle.Render("Loading...")
	}
	all := "[ctrl+a] Show all"
	if c.loadingPlan {
		all = busyStyle.Render("Loading plan...")
	}

	line := titleStyle.Render(progress) + "  " + hintStyle.Render(next) + "  " + hintStyle.Render(all)
	if c.status != "" {
		line += "  " + errorStyle.Render(c.status)
	}
	return line
}
