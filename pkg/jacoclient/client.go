// Package jacoclient is a Go client for the Jaco side-chat, step and topic APIs.
// Every call performs exactly one HTTP request and never retries.
package jacoclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL = "http://localhost:8080/api/v1"
)

// Client talks to a running Jaco server. The bearer token is passed per call
// so one client can serve several users.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	logger     zerolog.Logger
}

// Option is a functional option for configuring the client
type Option func(*Client)

// WithBaseURL sets the API root, e.g. http://host:8080/api/v1
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.BaseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = httpClient
	}
}

// WithLogger sets the logger used for transport and decode failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(opts ...Option) *Client {
	client := &Client{
		BaseURL: DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: log.Logger,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// APIError is returned for any non-2xx response. Body holds the decoded JSON
// payload, or the raw text when the server did not answer with JSON.
type APIError struct {
	StatusCode int
	Body       interface{}
}

func (e *APIError) Error() string {
	if env, ok := e.Body.(map[string]interface{}); ok {
		if inner, ok := env["error"].(map[string]interface{}); ok {
			if msg, ok := inner["message"].(string); ok && msg != "" {
				return fmt.Sprintf("jaco api: status %d: %s", e.StatusCode, msg)
			}
		}
	}
	return fmt.Sprintf("jaco api: status %d", e.StatusCode)
}

// Code returns the machine-readable error code from the error envelope, if any.
func (e *APIError) Code() string {
	if env, ok := e.Body.(map[string]interface{}); ok {
		if inner, ok := env["error"].(map[string]interface{}); ok {
			if code, ok := inner["code"].(string); ok {
				return code
			}
		}
	}
	return ""
}

// IsStatus reports whether err is an *APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// do sends one request. body may be nil; result may be nil to discard the response.
func (c *Client) do(ctx context.Context, method, path, token string, body, result interface{}) error {
	url := c.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request body")
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("jaco request failed")
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("failed to read jaco response")
		return errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: parseErrorBody(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("failed to decode jaco response")
			return errors.Wrap(err, "failed to decode response")
		}
	}

	return nil
}

func parseErrorBody(raw []byte) interface{} {
	var parsed interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return string(raw)
	}
	return parsed
}
