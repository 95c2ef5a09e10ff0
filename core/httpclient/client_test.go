package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/moviebot/core/logger"
)

func TestClientPropagatesRequestID(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get(RequestIDHeader))
	}))
	defer srv.Close()

	client := New(Options{Timeout: time.Second})

	ctx := logger.WithRID(context.Background(), "1:2:3")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL, strings.NewReader("{}"))
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "1:2:3", got.Load())

	req, err = http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Len(t, got.Load().(string), 36, "a fresh uuid is generated")
}

func TestClientDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		conn, _, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		_ = conn.Close()
	}))
	defer srv.Close()

	client := New(Options{Timeout: time.Second})
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{"telegram_id":1}`))
	require.NoError(t, err)
	_, err = client.Do(req)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientDefaultTimeout(t *testing.T) {
	assert.Equal(t, defaultClientTimeout, New(Options{}).Timeout)
	assert.Equal(t, 3*time.Second, New(Options{Timeout: 3 * time.Second}).Timeout)
}
