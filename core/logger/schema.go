package logger

import "strings"

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

// statusValues are the status words dashboards group by; anything else is passed through.
var statusValues = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"skip":         {},
	"denied":       {},
	"rate_limited": {},
	"cancelled":    {},
}

var outcomeValues = map[string]struct{}{
	"ok":        {},
	"fail":      {},
	"cancelled": {},
	"timeout":   {},
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if mapped, ok := levelNames[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeEnum(value string, allowed map[string]struct{}) (string, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "", false
	}
	_, ok := allowed[value]
	return value, ok
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"service",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"telegram_id",
	"handler",
	"command",
	"state",
	"decision",
	"outcome",
	"duration_ms",
	"method",
	"path",
	"http_code",
	"count",
	"max",
	"movie",
	"style",
	"prompt_len",
	"text_len",
	"mode",
	"listen",
	"public_url",
	"db",
	"host",
	"port",
	"err",
	"err_kind",
	"cause",
	"attempts",
}
