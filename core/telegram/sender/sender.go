// Package sender delivers outbound chat messages through the Telegram Bot API.
package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/moviebot/core/logger"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// API is the part of *tele.Bot used for sending.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Sender sends plain text to a chat synchronously. Failures are logged and returned;
// nothing is retried.
type Sender struct {
	api API
}

// New returns a Sender over api.
func New(api API) *Sender {
	return &Sender{api: api}
}

// Send delivers text to chatID.
func (s *Sender) Send(ctx context.Context, chatID int64, text string) error {
	start := time.Now()
	_, err := s.api.Send(tele.ChatID(chatID), text)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error(ctx, "tg.sender", "send.fail",
			slog.Int64("chat_id", chatID),
			slog.String("error", sanitizeErrorMessage(err)),
			slog.String("error_kind", classifyError(err)),
			slog.Duration("duration", logger.RoundMS(elapsed)),
		)
		return errors.New(sanitizeErrorMessage(err))
	}
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, "tg.sender", "send.success",
			slog.Int64("chat_id", chatID),
			slog.Int("text_len", len([]rune(text))),
			slog.Duration("duration", logger.RoundMS(elapsed)),
		)
	}
	return nil
}

func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return "dial"
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return "timeout"
	}

	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return "tls"
	}

	status := httpStatusFromError(err)
	switch {
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// sanitizeErrorMessage keeps bot tokens out of logs and returned errors.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}

func httpStatusFromError(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return http.StatusTooManyRequests
	}

	msg := err.Error()
	lastOpen := strings.LastIndex(msg, "(")
	lastClose := strings.LastIndex(msg, ")")
	if lastOpen >= 0 && lastClose > lastOpen+1 {
		if code, convErr := strconv.Atoi(strings.TrimSpace(msg[lastOpen+1 : lastClose])); convErr == nil {
			return code
		}
	}
	return 0
}
