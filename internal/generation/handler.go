package generation

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/m3rciful/moviebot/core/httpapi"
	"github.com/m3rciful/moviebot/core/logger"
)

// GenerateRequest is the body of POST /generate-text.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateResponse is the success body of POST /generate-text.
type GenerateResponse struct {
	Text string `json:"text"`
}

// ErrorResponse is the failure body. Upstream failures fill Details, anything else fills
// Message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	errPromptRequired = "Prompt is required"
	errUpstream       = "DeepSeek API error"
	errException      = "Exception occurred"
)

// Handler serves the generation proxy.
type Handler struct {
	gen Generator
}

// NewHandler returns a Handler over gen.
func NewHandler(gen Generator) *Handler {
	return &Handler{gen: gen}
}

// Routes mounts POST /generate-text on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/generate-text", h.generate)
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		httpapi.JSON(w, http.StatusBadRequest, ErrorResponse{Error: errPromptRequired})
		return
	}

	text, err := h.gen.Generate(r.Context(), req.Prompt)
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			httpapi.JSON(w, http.StatusInternalServerError, ErrorResponse{Error: errUpstream, Details: upstream.Body})
			return
		}
		httpapi.JSON(w, http.StatusInternalServerError, ErrorResponse{Error: errException, Message: err.Error()})
		return
	}
	httpapi.JSON(w, http.StatusOK, GenerateResponse{Text: text})
}

// WritePanic renders a recovered panic in the proxy's own error shape.
func WritePanic(w http.ResponseWriter, r *http.Request, recovered any) {
	logger.LogEvent(r.Context(), logger.SVCGeneration, slog.LevelError, "generation.panic",
		slog.String("path", r.URL.Path),
	)
	httpapi.JSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   errException,
		Message: fmt.Sprint(recovered),
	})
}
