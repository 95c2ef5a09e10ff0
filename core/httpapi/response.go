package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/m3rciful/moviebot/core/logger"
)

// Envelope is the {success, data, error} body used by the quota service and the bot webhook.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JSON writes v as the response body with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.HTTP.Warn("response encode failed",
			slog.String("event", "http.encode"),
			slog.String("err", err.Error()),
		)
	}
}

// OK writes a 200 success envelope around data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Fail writes a failure envelope with the given status.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Error: message})
}

// maxBodyBytes bounds request bodies; every request here is a small JSON object.
const maxBodyBytes = 1 << 20

// DecodeJSON decodes the request body into v. An empty body is reported as io.EOF so callers
// can tell "missing" from "malformed".
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("decode json body: %w", err)
	}
	return nil
}
