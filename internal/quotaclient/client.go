// Package quotaclient is the bot's HTTP client for the quota service.
package quotaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// UserInfo mirrors the /user-info payload.
type UserInfo struct {
	TelegramID          int64  `json:"telegram_id"`
	HasSubscription     bool   `json:"has_subscription"`
	SubscriptionEndDate string `json:"subscription_end_date"`
	TodaysRequestsCount int    `json:"todays_requests_count"`
	MaxRequestsPerDay   int    `json:"max_requests_per_day"`
}

// SubscriptionEnd parses SubscriptionEndDate.
func (u UserInfo) SubscriptionEnd() (time.Time, error) {
	return time.Parse("2006-01-02", u.SubscriptionEndDate)
}

// Decision mirrors the /check-limit payload.
type Decision struct {
	Allowed             bool `json:"allowed"`
	TodaysRequestsCount int  `json:"todays_requests_count"`
	MaxRequestsPerDay   int  `json:"max_requests_per_day"`
}

// Subscription mirrors the /subscribe payload.
type Subscription struct {
	Status              string `json:"status"`
	SubscriptionEndDate string `json:"subscription_end_date"`
}

// StatusError is a non-2xx or success:false answer.
type StatusError struct {
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("quota service %s: status %d: %s", e.Path, e.StatusCode, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Client calls the quota service. Calls are never retried.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the service at baseURL.
func New(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// UserInfo fetches subscription and usage for telegramID.
func (c *Client) UserInfo(ctx context.Context, telegramID int64) (UserInfo, error) {
	var out UserInfo
	err := c.post(ctx, "/user-info", telegramID, &out)
	return out, err
}

// CheckAndConsume asks for one request of today's allowance.
func (c *Client) CheckAndConsume(ctx context.Context, telegramID int64) (Decision, error) {
	var out Decision
	err := c.post(ctx, "/check-limit", telegramID, &out)
	return out, err
}

// Subscribe starts a one-month subscription.
func (c *Client) Subscribe(ctx context.Context, telegramID int64) (Subscription, error) {
	var out Subscription
	err := c.post(ctx, "/subscribe", telegramID, &out)
	return out, err
}

func (c *Client) post(ctx context.Context, path string, telegramID int64, out any) error {
	body, err := json.Marshal(map[string]int64{"telegram_id": telegramID})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("quota service %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.Success {
		msg := env.Error
		if msg == "" && decodeErr != nil {
			msg = decodeErr.Error()
		}
		return &StatusError{Path: path, StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s: %w", path, decodeErr)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", path, err)
	}
	return nil
}
