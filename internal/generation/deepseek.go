// Package generation turns prompts into text through the DeepSeek chat completions API and
// exposes that as a small HTTP proxy.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/m3rciful/moviebot/core/logger"
	"github.com/m3rciful/moviebot/core/metrics"
)

const (
	DefaultAPIURL = "https://api.deepseek.com/v1/chat/completions"
	DefaultModel  = "deepseek-chat"
)

// maxErrorBody caps how much of an upstream error body is kept.
const maxErrorBody = 64 * 1024

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrEmptyText is returned when generation succeeded but produced no text.
var ErrEmptyText = errors.New("generation returned empty text")

// UpstreamError is a non-2xx answer from the generation API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// DeepSeekConfig configures a DeepSeekClient.
type DeepSeekConfig struct {
	APIURL string
	APIKey string
	Model  string
	// RatePerSecond and Burst bound outgoing calls; a zero rate disables the limiter.
	RatePerSecond float64
	Burst         int
}

// DeepSeekClient calls the chat completions endpoint with a single user message.
type DeepSeekClient struct {
	cfg     DeepSeekConfig
	http    *http.Client
	limiter *rate.Limiter
}

// NewDeepSeekClient returns a client using httpClient for transport.
func NewDeepSeekClient(cfg DeepSeekConfig, httpClient *http.Client) *DeepSeekClient {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return &DeepSeekClient{cfg: cfg, http: httpClient, limiter: limiter}
}

// Generate implements Generator.
func (c *DeepSeekClient) Generate(ctx context.Context, prompt string) (text string, err error) {
	start := time.Now()
	defer func() {
		outcome := logger.Outcome(err)
		metrics.GenerationRequestsTotal.WithLabelValues(outcome).Inc()
		metrics.GenerationDuration.Observe(time.Since(start).Seconds())

		level := slog.LevelInfo
		attrs := []slog.Attr{
			slog.String("outcome", outcome),
			slog.String("model", c.cfg.Model),
			slog.Int("prompt_len", len([]rune(prompt))),
			slog.Duration("duration", logger.Took(start)),
		}
		if err != nil {
			level = slog.LevelWarn
			attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 300)))
		}
		logger.LogEvent(ctx, logger.SVCGeneration, level, "generation.call", attrs...)
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model:    c.cfg.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyText
	}
	return out.Choices[0].Message.Content, nil
}
