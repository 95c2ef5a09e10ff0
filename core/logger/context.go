package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
)

type contextKey string

const (
	ctxRID      contextKey = "rid"
	ctxUpdateID contextKey = "update_id"
	ctxUserID   contextKey = "user_id"
	ctxChatID   contextKey = "chat_id"
	ctxLogger   contextKey = "logger"
	ctxHandler  contextKey = "handler"
)

// WithLogger stores log in ctx for propagation across layers.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxLogger, log)
}

// FromContext returns the logger stored in ctx or the base logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxLogger).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return L
}

// WithRID attaches a request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ctxRID, rid)
}

// RIDFrom extracts the correlation id, if any.
func RIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(ctxRID).(string)
	return s
}

// WithUpdateMeta attaches Telegram update identifiers.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	ctx = context.WithValue(ctx, ctxUpdateID, updateID)
	ctx = context.WithValue(ctx, ctxUserID, userID)
	return context.WithValue(ctx, ctxChatID, chatID)
}

// WithUser attaches the Telegram user id on paths that have no update, such as the
// quota HTTP handlers.
func WithUser(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithHandler stores the handler name for downstream logs.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxHandler, handler)
}

// HandlerFrom returns the handler name, if any.
func HandlerFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(ctxHandler).(string)
	return s
}

// UserIDFrom extracts the Telegram user id.
func UserIDFrom(ctx context.Context) int64 {
	return int64From(ctx, ctxUserID)
}

// ChatIDFrom extracts the chat id.
func ChatIDFrom(ctx context.Context) int64 {
	return int64From(ctx, ctxChatID)
}

// UpdateIDFrom extracts the Telegram update id.
func UpdateIDFrom(ctx context.Context) int {
	return int(int64From(ctx, ctxUpdateID))
}

func int64From(ctx context.Context, key contextKey) int64 {
	if ctx == nil {
		return 0
	}
	switch id := ctx.Value(key).(type) {
	case int64:
		return id
	case int:
		return int64(id)
	}
	return 0
}

// Sanitize drops control and format runes except tab and newline.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SanitizeLimit applies Sanitize and truncates the result to max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(Sanitize(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max])
}

// BuildRID returns a correlation identifier in the format updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// CompactRID shortens a BuildRID value into dot-separated base36 segments.
// Other identifiers, such as HTTP request ids, are returned unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	compact := make([]string, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return rid
		}
		compact = append(compact, strconv.FormatInt(n, 36))
	}
	return strings.Join(compact, ".")
}
