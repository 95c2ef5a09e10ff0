package logger

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Status is "ok" for a nil error and "fail" otherwise.
func Status(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

// Outcome classifies the result of an outbound call: ok, timeout, cancelled or fail.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "fail"
	}
}

// Took is the time since start rounded to milliseconds.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds d to milliseconds; negative values become zero.
func RoundMS(d time.Duration) time.Duration {
	return max(d, 0).Round(time.Millisecond)
}

// SummarizeStrings joins at most limit values and reports whether any were left out.
func SummarizeStrings(values []string, limit int) (string, bool) {
	n := min(max(limit, 0), len(values))
	return strings.Join(values[:n], ", "), n < len(values)
}
