package jacoclient

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

func chatPath(chatID uuid.UUID, suffix string) string {
	return "/chats/" + chatID.String() + suffix
}

func (c *Client) NextStep(ctx context.Context, token string, chatID uuid.UUID) (*NextStep, error) {
	var res NextStep
	if err := c.do(ctx, http.MethodPost, chatPath(chatID, "/steps/next"), token, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) AllSteps(ctx context.Context, token string, chatID uuid.UUID) (*AllSteps, error) {
	var res AllSteps
	if err := c.do(ctx, http.MethodGet, chatPath(chatID, "/steps"), token, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) SetStepMode(ctx context.Context, token string, chatID uuid.UUID, enabled bool) (*StepContext, error) {
	var res StepContext
	body := map[string]bool{"enabled": enabled}
	if err := c.do(ctx, http.MethodPut, chatPath(chatID, "/steps/mode"), token, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// IngestResponse hands a raw model answer to the server, which strips step
// metadata and caches any steps beyond the first.
func (c *Client) IngestResponse(ctx context.Context, token string, chatID uuid.UUID, content string) (*IngestResult, error) {
	var res IngestResult
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, chatPath(chatID, "/steps/ingest"), token, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) RouteMessage(ctx context.Context, token string, chatID uuid.UUID, content string, history []ChatMessage) (*RouteResult, error) {
	var res RouteResult
	body := struct {
		Content  string        `json:"content"`
		Messages []ChatMessage `json:"messages"`
	}{content, history}
	if err := c.do(ctx, http.MethodPost, chatPath(chatID, "/steps/route"), token, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ClassifyTopic(ctx context.Context, token string, chatID uuid.UUID, message string) (*SplitDecision, error) {
	var res SplitDecision
	body := map[string]string{"message": message}
	if err := c.do(ctx, http.MethodPost, chatPath(chatID, "/topic/classify"), token, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ConfirmTopicSplit queues the split and returns the job tracking it.
func (c *Client) ConfirmTopicSplit(ctx context.Context, token string, chatID uuid.UUID, req TopicSplit) (*Job, error) {
	var res struct {
		Job *Job `json:"job"`
	}
	if err := c.do(ctx, http.MethodPost, chatPath(chatID, "/topic/split"), token, req, &res); err != nil {
		return nil, err
	}
	if res.Job == nil {
		return nil, errors.New("split response carried no job")
	}
	return res.Job, nil
}

func (c *Client) ListTopicBoundaries(ctx context.Context, token string, chatID uuid.UUID) ([]TopicBoundary, error) {
	var list []TopicBoundary
	if err := c.do(ctx, http.MethodGet, chatPath(chatID, "/topic/boundaries"), token, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) GetJob(ctx context.Context, token string, jobID uuid.UUID) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+jobID.String(), token, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
