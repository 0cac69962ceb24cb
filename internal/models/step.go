package models

import "encoding/json"

// StepContext tracks step-by-step state for a single chat.
type StepContext struct {
	ActivePlan          bool    `json:"active_plan"`
	TotalStepsEstimated int     `json:"total_steps_estimated"`
	CurrentStep         int     `json:"current_step"`
	PlanSummary         string  `json:"plan_summary"`
	FullPlanCache       *string `json:"full_plan_cache"`
	StepModeEnabled     bool    `json:"step_mode_enabled"`
}

func DefaultStepContext() StepContext {
	return StepContext{StepModeEnabled: true}
}

// UnmarshalJSON keeps step mode enabled when the field is absent.
func (c *StepContext) UnmarshalJSON(data []byte) error {
	type alias StepContext
	out := alias(DefaultStepContext())
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*c = StepContext(out)
	return nil
}

// StepMetadata is the hidden tag the model appends to stepped responses.
type StepMetadata struct {
	Current        int    `json:"current"`
	TotalEstimated int    `json:"total_estimated"`
	PlanSummary    string `json:"plan_summary"`
}

type NextStepResponse struct {
	Content     string      `json:"content"`
	StepContext StepContext `json:"step_context"`
}

type AllStepsResponse struct {
	PlanSummary         string `json:"plan_summary"`
	FullPlan            string `json:"full_plan"`
	CurrentStep         int    `json:"current_step"`
	TotalStepsEstimated int    `json:"total_steps_estimated"`
}

type StepModeRequest struct {
	Enabled *bool `json:"enabled"`
}

type IngestResponseRequest struct {
	Content string `json:"content"`
}

type IngestResponseResult struct {
	Content       string      `json:"content"`
	Leaked        bool        `json:"leaked"`
	StepContext   StepContext `json:"step_context"`
	MemoriesSaved int         `json:"memories_saved"`
}

const (
	StepActionNext  = "next_step"
	StepActionAll   = "all_steps"
	StepActionModel = "model"
)

type StepRouteRequest struct {
	Content  string        `json:"content"`
	Messages []ChatMessage `json:"messages"`
}

// StepRouteResult tells the chat engine how to answer a user message: serve
// a cached step, show the whole plan, or send Messages to the model.
type StepRouteResult struct {
	Action   string            `json:"action"`
	Step     *NextStepResponse `json:"step,omitempty"`
	Plan     *AllStepsResponse `json:"plan,omitempty"`
	Messages []ChatMessage     `json:"messages,omitempty"`
}
