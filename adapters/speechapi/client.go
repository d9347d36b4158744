// Package speechapi talks to the voice backend's REST surface: on-demand
// synthesis and engine availability.
package speechapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Config contains speech API client configuration
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries uint64
}

// Client provides HTTP access to the backend speech endpoints
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// SynthesisRequest asks the backend to produce speech for a text
type SynthesisRequest struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Speed    float64 `json:"speed,omitempty"`
}

// SynthesisResponse carries the URL of the produced audio
type SynthesisResponse struct {
	AudioURL string `json:"audio_url"`
}

// ModelStatus reports which speech engines the backend has loaded
type ModelStatus struct {
	TTSAvailable bool `json:"tts_available"`
	STTAvailable bool `json:"stt_available"`
}

// NewClient creates a speech API client
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

// Synthesize requests TTS for the given text. Korean is the default
// language when none is given.
func (c *Client) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResponse, error) {
	if req.Language == "" {
		req.Language = "KR"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	var out SynthesisResponse
	err = c.doWithRetry(ctx, "synthesize", func() error {
		return c.postJSON(ctx, "/api/tts", body, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Models reports engine availability. Checked once at startup so a
// missing engine is surfaced before the first recording.
func (c *Client) Models(ctx context.Context) (*ModelStatus, error) {
	var out ModelStatus
	err := c.doWithRetry(ctx, "model status", func() error {
		return c.getJSON(ctx, "/api/models/status", &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// doWithRetry runs op under capped exponential backoff. Client errors
// other than 429 are permanent and fail immediately.
func (c *Client) doWithRetry(ctx context.Context, name string, op func() error) error {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.config.MaxRetries), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err != nil && attempt <= int(c.config.MaxRetries) {
			c.logger.Warn("Speech API request failed, will retry",
				zap.String("operation", name),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return err
	}, bo)
}

func (c *Client) postJSON(ctx context.Context, path string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
		if retryableStatus(resp.StatusCode) {
			return httpErr
		}
		return backoff.Permanent(httpErr)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return backoff.Permanent(fmt.Errorf("parse response JSON: %w", err))
	}
	return nil
}

// retryableStatus reports whether a status is worth another attempt.
// Server errors and rate limiting are; other client errors are not.
func retryableStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}
