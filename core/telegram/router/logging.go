package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/moviebot/core/logger"
	tghelpers "github.com/m3rciful/moviebot/core/telegram/helpers"
)

// ResultKey is the tele.Context key under which handlers leave their result status.
const ResultKey = "result_status"

func handleWithSummary(c tele.Context, handlerName string, start time.Time, fn func() error) error {
	tghelpers.WithHandler(c, handlerName)
	err := fn()
	logHandlerSummary(c, handlerName, start, err)
	return err
}

func logHandlerSummary(c tele.Context, handlerName string, start time.Time, err error) {
	ctx := tghelpers.WithHandler(c, handlerName)

	status, outcome := "ok", "ok"
	if err != nil {
		status, outcome = "fail", "fail"
	}
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", handlerName),
		slog.String("outcome", outcome),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if result, _ := c.Get(ResultKey).(string); result != "" {
		attrs = append(attrs, slog.String("result", result))
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
