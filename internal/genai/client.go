// Package genai wraps the third-party generation API (speech, image,
// video, music) behind a submit/poll interface.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"

	"github.com/pixelle-ai/mcp-broker/internal/config"
	"github.com/pixelle-ai/mcp-broker/internal/model"
)

// Kind selects a generation task type.
type Kind string

const (
	KindSpeech Kind = "speech"
	KindImage  Kind = "image"
	KindVideo  Kind = "video"
	KindMusic  Kind = "music"
)

var endpoints = map[Kind]string{
	KindSpeech: "/v1/text_to_audio",
	KindImage:  "/v1/text_to_image",
	KindVideo:  "/v1/video_generation",
	KindMusic:  "/v1/music_generation",
}

// Status values reported by the upstream API.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// errTaskPending marks a poll that found the task still running, so Wait
// knows to retry.
var errTaskPending = errors.New("task pending")

// ErrTaskFailed is returned when the upstream task reports failure.
var ErrTaskFailed = errors.New("generation task failed")

// SubmitResult is the response to a submitted task. Either TaskID is set
// and the caller polls, or ResultURL is set and the task completed inline.
type SubmitResult struct {
	TaskID    string `json:"task_id"`
	ResultURL string `json:"result_url"`
}

// TaskResult is the state of an asynchronous task.
type TaskResult struct {
	Status    string `json:"status"`
	ResultURL string `json:"result_url"`
	Error     string `json:"error"`
}

// Client is an HTTP client for the generation API.
type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	log     zerolog.Logger
}

// NewClient creates a client. A missing API key fails here, the point the
// collaborator is first needed, rather than degrading silently later.
func NewClient(cfg config.GenAIConfig, log zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, model.ErrAPIKeyRequired
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		httpc:   &http.Client{Timeout: 60 * time.Second},
		log:     log.With().Str("component", "genai").Logger(),
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("generation API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("generation API returned %d: %s", resp.StatusCode, payload)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid JSON response: %w", err)
	}
	return nil
}

// Submit starts a generation task of the given kind.
func (c *Client) Submit(ctx context.Context, kind Kind, params map[string]any) (SubmitResult, error) {
	endpoint, ok := endpoints[kind]
	if !ok {
		return SubmitResult{}, fmt.Errorf("unsupported generation kind: %s", kind)
	}

	var result SubmitResult
	if err := c.do(ctx, http.MethodPost, endpoint, params, &result); err != nil {
		return SubmitResult{}, err
	}
	c.log.Debug().Str("kind", string(kind)).Str("task_id", result.TaskID).Msg("task submitted")
	return result, nil
}

// Poll fetches the current state of a task.
func (c *Client) Poll(ctx context.Context, taskID string) (TaskResult, error) {
	var result TaskResult
	if err := c.do(ctx, http.MethodGet, "/v1/query/"+taskID, nil, &result); err != nil {
		return TaskResult{}, err
	}
	return result, nil
}

// Wait polls the task on interval until it completes, fails, or maxWait
// elapses.
func (c *Client) Wait(ctx context.Context, taskID string, interval, maxWait time.Duration) (TaskResult, error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	attempts := uint(maxWait / interval)
	if attempts == 0 {
		attempts = 1
	}

	var result TaskResult
	err := retry.Do(
		func() error {
			r, err := c.Poll(ctx, taskID)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			result = r
			switch r.Status {
			case StatusCompleted:
				return nil
			case StatusFailed:
				return retry.Unrecoverable(fmt.Errorf("%w: %s", ErrTaskFailed, r.Error))
			default:
				return errTaskPending
			}
		},
		retry.Attempts(attempts),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, errTaskPending) {
			return result, fmt.Errorf("task %s timed out after %s", taskID, maxWait)
		}
		return result, err
	}
	return result, nil
}
