// Package httpclient builds the outbound HTTP clients used for Telegram and for calls
// between services.
package httpclient

import (
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/moviebot/core/logger"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultClientTimeout     = 30 * time.Second
)

// RequestIDHeader carries the correlation id between services. chi's RequestID middleware
// reuses an incoming value.
const RequestIDHeader = "X-Request-Id"

// Options tunes a client. A zero Timeout falls back to the default.
type Options struct {
	Timeout time.Duration
}

// New returns a client with a pooled transport and request id propagation. Failed calls are
// never retried.
func New(opts Options) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultClientTimeout
	}

	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Timeout: opts.Timeout, Transport: &requestIDTransport{base: base}}
}

type requestIDTransport struct {
	base http.RoundTripper
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(RequestIDHeader) != "" {
		return t.base.RoundTrip(req)
	}
	rid := logger.RIDFrom(req.Context())
	if rid == "" {
		rid = uuid.NewString()
	}
	req = req.Clone(req.Context())
	req.Header.Set(RequestIDHeader, rid)
	return t.base.RoundTrip(req)
}
