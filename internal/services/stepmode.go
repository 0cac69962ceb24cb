package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"jaco-backend/internal/models"
)

// StepModeSystemPrompt is added to the system message of chats in step mode.
const StepModeSystemPrompt = `You are Jaco. When a task involves multiple steps:
1. Provide ONLY the first/next step: one actionable thing the user can do right now.
2. Wait for the user to confirm completion or ask for the next step.
3. Keep your response focused, concise, and actionable.
4. If the user asks for the full plan, provide all steps at once.
5. Do not number steps unless asked. Just give the next thing to do, naturally.
6. At the end of your response, include a hidden metadata tag:
   <!-- jaco-step: {"current": 1, "total_estimated": N, "plan_summary": "brief description"} -->

Never mention this metadata tag to the user. It's for internal tracking only.`

var (
	multiStepPatterns = []*regexp.Regexp{
		// "1. ... 2. ... 3. ...", content lines allowed between items
		regexp.MustCompile(`(?im)(?:^|\n)\s*(?:step\s+)?\d+[.)]\s+.+(?:[\s\S]*?\n\s*(?:step\s+)?\d+[.)]\s+.+){2,}`),
		// "First, ... Second, ..." / "Step 1: ... next:"
		regexp.MustCompile(`(?is)(?:first|step\s+1)[,:].*?(?:second|step\s+2|next)[,:]`),
	}
	stepMetadataPattern = regexp.MustCompile(`(?s)<!--\s*jaco-step:\s*(\{.*?\})\s*-->`)
	stepStartPattern    = regexp.MustCompile(`(?i)^\s*(?:step\s+)?\d+[.)]\s+`)
)

var advancePhrases = map[string]struct{}{
	"next": {}, "continue": {}, "go on": {}, "next step": {}, "what's next": {},
	"done": {}, "ok next": {}, "okay next": {}, "proceed": {}, "and then": {},
	"what now": {}, "now what": {},
}

var fullPlanPhrases = []string{
	"show all", "show all steps", "full plan", "all steps",
	"show me everything", "give me all", "the whole plan",
	"list all steps", "show everything",
}

// ExtractStepMetadata returns the hidden jaco-step tag, or nil when the
// response has none or the tag is not valid JSON.
func ExtractStepMetadata(response string) *models.StepMetadata {
	m := stepMetadataPattern.FindStringSubmatch(response)
	if m == nil {
		return nil
	}
	var meta models.StepMetadata
	if err := json.Unmarshal([]byte(m[1]), &meta); err != nil {
		return nil
	}
	return &meta
}

func StripStepMetadata(response string) string {
	return strings.TrimRight(stepMetadataPattern.ReplaceAllString(response, ""), " \t\r\n")
}

// DetectMultiStepLeak reports whether the model handed out a whole plan
// when it should have given one step.
func DetectMultiStepLeak(response string) bool {
	for _, p := range multiStepPatterns {
		if p.MatchString(response) {
			return true
		}
	}
	return false
}

// SplitFirstStep cuts text at the start of the second numbered item.
// remaining is empty when there is no second item.
func SplitFirstStep(text string) (first, remaining string) {
	var head, tail []string
	steps := 0
	inTail := false

	for _, line := range strings.Split(text, "\n") {
		if stepStartPattern.MatchString(strings.TrimSpace(line)) {
			steps++
			if steps >= 2 {
				inTail = true
			}
		}
		if inTail {
			tail = append(tail, line)
		} else {
			head = append(head, line)
		}
	}

	return strings.TrimSpace(strings.Join(head, "\n")), strings.TrimSpace(strings.Join(tail, "\n"))
}

func countSteps(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if stepStartPattern.MatchString(strings.TrimSpace(line)) {
			n++
		}
	}
	return n
}

func normalizePhrase(message string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(message)), "?!.")
}

func IsAdvanceRequest(message string) bool {
	_, ok := advancePhrases[normalizePhrase(message)]
	return ok
}

func IsFullPlanRequest(message string) bool {
	normalized := normalizePhrase(message)
	for _, phrase := range fullPlanPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

// InjectStepSystemPrompt returns messages with the step mode prompt merged
// into the leading system message, or a new one prepended. The input slice
// is not modified.
func InjectStepSystemPrompt(messages []models.ChatMessage, sc models.StepContext) []models.ChatMessage {
	if !sc.StepModeEnabled {
		return messages
	}

	addition := StepModeSystemPrompt
	if sc.ActivePlan {
		addition += fmt.Sprintf("\n\nCurrent context: You are on step %d of ~%d for: %s. Provide the next step only.",
			sc.CurrentStep, sc.TotalStepsEstimated, sc.PlanSummary)
	}

	return InjectSystemContext(messages, addition)
}

// NextStep pops the first cached step. It returns nil when no plan is
// active or nothing is cached. The plan deactivates once the cache empties.
func NextStep(sc models.StepContext) *models.NextStepResponse {
	if !sc.ActivePlan || sc.FullPlanCache == nil || *sc.FullPlanCache == "" {
		return nil
	}

	first, remaining := SplitFirstStep(*sc.FullPlanCache)
	sc.CurrentStep++
	if remaining == "" {
		sc.FullPlanCache = nil
		sc.ActivePlan = false
	} else {
		sc.FullPlanCache = &remaining
	}

	return &models.NextStepResponse{Content: first, StepContext: sc}
}

func AllSteps(sc models.StepContext) *models.AllStepsResponse {
	if !sc.ActivePlan {
		return nil
	}
	resp := &models.AllStepsResponse{
		PlanSummary:         sc.PlanSummary,
		CurrentStep:         sc.CurrentStep,
		TotalStepsEstimated: sc.TotalStepsEstimated,
	}
	if sc.FullPlanCache != nil {
		resp.FullPlan = *sc.FullPlanCache
	}
	return resp
}

// IngestAssistantResponse strips the metadata tag from a model response,
// records it on the step context and, when the model leaked the whole
// plan, keeps only the first step visible and caches the rest.
func IngestAssistantResponse(sc models.StepContext, response string) models.IngestResponseResult {
	meta := ExtractStepMetadata(response)
	visible := StripStepMetadata(response)

	if !sc.StepModeEnabled {
		return models.IngestResponseResult{Content: visible, StepContext: sc}
	}

	if meta != nil {
		sc.ActivePlan = true
		sc.CurrentStep = meta.Current
		sc.TotalStepsEstimated = meta.TotalEstimated
		if meta.PlanSummary != "" {
			sc.PlanSummary = meta.PlanSummary
		}
	}

	leaked := false
	if DetectMultiStepLeak(visible) {
		first, remaining := SplitFirstStep(visible)
		if remaining != "" {
			leaked = true
			total := countSteps(visible)
			visible = first
			sc.ActivePlan = true
			sc.FullPlanCache = &remaining
			if sc.CurrentStep == 0 {
				sc.CurrentStep = 1
			}
			if sc.TotalStepsEstimated < sc.CurrentStep+total-1 {
				sc.TotalStepsEstimated = sc.CurrentStep + total - 1
			}
		}
	}

	return models.IngestResponseResult{Content: visible, Leaked: leaked, StepContext: sc}
}
