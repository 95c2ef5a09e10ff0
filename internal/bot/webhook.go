package bot

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/m3rciful/moviebot/core/httpapi"
	"github.com/m3rciful/moviebot/core/logger"
)

// SecretHeader carries the webhook secret set through setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const errInvalidPayload = "Invalid webhook payload"

type webhookUpdate struct {
	UpdateID int             `json:"update_id"`
	Message  *webhookMessage `json:"message" validate:"required"`
}

type webhookMessage struct {
	Text string       `json:"text" validate:"required"`
	Chat *webhookPeer `json:"chat" validate:"required"`
	From *webhookPeer `json:"from" validate:"required"`
}

type webhookPeer struct {
	ID int64 `json:"id" validate:"required"`
}

// WebhookResponse is the body returned for every accepted update.
type WebhookResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// Webhook serves Telegram updates pushed over HTTP.
type Webhook struct {
	svc      *Service
	secret   string
	validate *validator.Validate
}

// NewWebhook returns a Webhook dispatching to svc. An empty secret disables the header check.
func NewWebhook(svc *Service, secret string) *Webhook {
	return &Webhook{svc: svc, secret: secret, validate: validator.New()}
}

// Routes mounts the webhook at path.
func (h *Webhook) Routes(r chi.Router, path string) {
	r.Post(path, h.serve)
}

func (h *Webhook) serve(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			httpapi.Fail(w, http.StatusUnauthorized, "invalid secret token")
			return
		}
	}

	var upd webhookUpdate
	if err := httpapi.DecodeJSON(r, &upd); err != nil {
		h.ignore(w, r, err)
		return
	}
	if err := h.validate.Struct(upd); err != nil {
		h.ignore(w, r, err)
		return
	}

	msg := Message{ChatID: upd.Message.Chat.ID, UserID: upd.Message.From.ID, Text: upd.Message.Text}
	// The flow keeps running if Telegram drops the connection.
	ctx := context.WithoutCancel(r.Context())
	ctx = logger.WithUpdateMeta(ctx, upd.UpdateID, msg.UserID, msg.ChatID)
	res := h.svc.HandleMessage(ctx, msg)
	httpapi.JSON(w, http.StatusOK, WebhookResponse{Success: res.Success, Status: res.Status})
}

// ignore acknowledges updates the bot does not handle, such as edits or stickers, so that
// Telegram does not redeliver them.
func (h *Webhook) ignore(w http.ResponseWriter, r *http.Request, err error) {
	logger.LogEvent(r.Context(), logger.SVCBot, slog.LevelDebug, "bot.webhook",
		slog.String("status", "skip"),
		slog.String("reason", logger.SanitizeLimit(err.Error(), 200)),
	)
	httpapi.JSON(w, http.StatusOK, WebhookResponse{Status: StatusIgnored, Error: errInvalidPayload})
}
