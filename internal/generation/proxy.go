package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ProxyClient is a Generator backed by a remote POST /generate-text endpoint.
type ProxyClient struct {
	url  string
	http *http.Client
}

// NewProxyClient returns a client for the endpoint at url.
func NewProxyClient(url string, httpClient *http.Client) *ProxyClient {
	return &ProxyClient{url: url, http: httpClient}
}

// Generate implements Generator. The caller's context bounds the call.
func (p *ProxyClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(GenerateRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call generation service: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	var out GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", ErrEmptyText
	}
	return out.Text, nil
}
