package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(buf *bytes.Buffer, format logFormat) (*structuredHandler, *asyncWriter) {
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	return newStructuredHandler(handlerConfig{
		level:    slog.LevelDebug,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	}), aw
}

func flushLine(t *testing.T, aw *asyncWriter, buf *bytes.Buffer) string {
	t.Helper()
	require.NoError(t, aw.Flush())
	require.NoError(t, aw.Close())
	return strings.TrimSpace(buf.String())
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatKV)

	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	log := slog.New(handler).With("service", "bot", "component", "service.bot")
	LogEvent(ctx, log, slog.LevelInfo, "summary.generated",
		slog.String("status", "ok"),
		slog.String("cause", "unit"),
	)

	line := flushLine(t, aw, buf)
	tokens := strings.Split(line, " ")
	require.GreaterOrEqual(t, len(tokens), 7, line)
	expected := []string{"ts=", "level=INFO", "service=bot", "component=service.bot", "event=summary.generated", "status=ok", "rid=rid-123"}
	for i, prefix := range expected {
		assert.Truef(t, strings.HasPrefix(tokens[i], prefix), "token %d = %s, expected prefix %s", i, tokens[i], prefix)
	}
	assert.Contains(t, line, "user_id=7")
	assert.Contains(t, line, "chat_id=9")
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatJSON)

	ctx := WithRID(context.Background(), "rid-json")
	log := slog.New(handler).With("component", "service.quota")
	LogEvent(ctx, log, slog.LevelError, "quota.check",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
	)

	line := flushLine(t, aw, buf)
	require.True(t, strings.HasPrefix(line, "{"), line)
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"service.quota"`, `"event":"quota.check"`, `"status":"fail"`, `"rid":"rid-json"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		require.Greaterf(t, idx, pos, "prefix %s not found in order within %s", pref, line)
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatJSON)

	rawRID := "12:34:56"
	ctx := WithRID(context.Background(), rawRID)
	LogEvent(ctx, slog.New(handler), slog.LevelInfo, "rid.test")

	line := flushLine(t, aw, buf)
	assert.Contains(t, line, `"rid":"`+CompactRID(rawRID)+`"`)
	assert.Contains(t, line, `"rid_full":"`+rawRID+`"`)
	assert.Contains(t, line, `"ts_unix_nano"`)
	assert.Contains(t, line, `"component":"app"`)
}

func TestStructuredHandlerDurationAndLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatKV)

	slog.New(handler).Debug("generation.call",
		slog.Duration("duration", 1500*time.Millisecond),
		slog.Duration("wait", 20*time.Millisecond),
		slog.String("outcome", "weird"),
	)

	line := flushLine(t, aw, buf)
	assert.Contains(t, line, "level=DEBUG")
	assert.Contains(t, line, "duration_ms=1500")
	assert.Contains(t, line, "wait_ms=20")
	assert.NotContains(t, line, "outcome=")
}

func TestCompactRID(t *testing.T) {
	assert.Equal(t, "1.a.z", CompactRID("1:10:35"))
	assert.Equal(t, "0.-1.1", CompactRID("0:-1:1"))
	assert.Equal(t, "5f1c-req", CompactRID("5f1c-req"))
}

func TestSanitizeLimit(t *testing.T) {
	assert.Equal(t, "Матрица", SanitizeLimit("Мат\u200bрица\x07", 64))
	assert.Equal(t, "Мат", SanitizeLimit("Матрица", 3))
	assert.Equal(t, "", SanitizeLimit("x", 0))
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	got := []bool{s.Allow(), s.Allow(), s.Allow(), s.Allow()}
	assert.Equal(t, []bool{true, false, false, true}, got)

	s.Set(0, 0)
	assert.True(t, s.Allow())

	num, den := parseRatioSpec("2/5")
	assert.Equal(t, 2, num)
	assert.Equal(t, 5, den)
	num, den = parseRatioSpec("10")
	assert.Equal(t, 1, num)
	assert.Equal(t, 10, den)
}

func TestComponentLoggersSafeBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		SVCQuota.Info("noop")
		Info(context.Background(), "tg", "noop")
	})
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "timeout", Outcome(fmt.Errorf("call: %w", context.DeadlineExceeded)))
	assert.Equal(t, "cancelled", Outcome(context.Canceled))
	assert.Equal(t, "fail", Outcome(io.ErrUnexpectedEOF))
	assert.Equal(t, "fail", Status(io.EOF))
}

func TestSummarizeStrings(t *testing.T) {
	s, cut := SummarizeStrings([]string{"a", "b", "c"}, 2)
	assert.Equal(t, "a, b", s)
	assert.True(t, cut)

	s, cut = SummarizeStrings([]string{"a"}, 5)
	assert.Equal(t, "a", s)
	assert.False(t, cut)
}

func TestAsyncWriterDropsAfterClose(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 0)
	require.NoError(t, aw.Write([]byte("one\n")))
	require.NoError(t, aw.Close())
	require.NoError(t, aw.Write([]byte("two\n")))
	assert.Equal(t, "one\n", buf.String())
}

func TestGroupsFlattenToDottedKeys(t *testing.T) {
	buf := &bytes.Buffer{}
	handler, aw := newTestHandler(buf, formatKV)

	slog.New(handler).WithGroup("req").Info("grouped", slog.Group("body", slog.Int("len", 3)))

	line := flushLine(t, aw, buf)
	assert.Contains(t, line, "req.body.len=3")
	assert.Contains(t, line, "event=grouped")
}
