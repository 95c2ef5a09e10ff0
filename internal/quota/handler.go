package quota

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/m3rciful/moviebot/core/httpapi"
	"github.com/m3rciful/moviebot/core/logger"
)

var (
	errIDRequired = httpapi.BadRequest("telegram_id is required")
	errIDInvalid  = httpapi.BadRequest("telegram_id must be an integer")
)

// Handler serves the quota endpoints.
type Handler struct {
	svc *Service
}

// NewHandler returns a Handler over svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts every endpoint on r. All of them are POST with a {telegram_id} body.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/user-info", h.userInfo)
	r.Post("/subscribe", h.subscribe)
	r.Post("/reset-limits", h.resetLimits)
	r.Post("/check-limits", h.checkLimits)
	r.Post("/increment-limits", h.incrementLimits)
	r.Post("/check-limit", h.checkLimit)
}

type userInfoResponse struct {
	TelegramID          int64  `json:"telegram_id"`
	HasSubscription     bool   `json:"has_subscription"`
	SubscriptionEndDate string `json:"subscription_end_date"`
	TodaysRequestsCount int    `json:"todays_requests_count"`
	MaxRequestsPerDay   int    `json:"max_requests_per_day"`
}

type usageResponse struct {
	TodaysRequestsCount int `json:"todays_requests_count"`
	MaxRequestsPerDay   int `json:"max_requests_per_day"`
}

type checkLimitResponse struct {
	Allowed bool `json:"allowed"`
	usageResponse
}

type statusResponse struct {
	Status              string `json:"status"`
	SubscriptionEndDate string `json:"subscription_end_date,omitempty"`
}

func (h *Handler) userInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := h.telegramID(w, r)
	if !ok {
		return
	}
	info, err := h.svc.UserInfo(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpapi.OK(w, userInfoResponse{
		TelegramID:          info.TelegramID,
		HasSubscription:     info.HasSubscription,
		SubscriptionEndDate: info.SubscriptionEndDate.Format(DateLayout),
		TodaysRequestsCount: info.Count,
		MaxRequestsPerDay:   info.Max,
	})
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := h.telegramID(w, r)
	if !ok {
		return
	}
	end, err := h.svc.Subscribe(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpapi.OK(w, statusResponse{Status: "subscribed", SubscriptionEndDate: end.Format(DateLayout)})
}

func (h *Handler) resetLimits(w http.ResponseWriter, r *http.Request) {
	id, ok := h.telegramID(w, r)
	if !ok {
		return
	}
	if err := h.svc.ResetLimits(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpapi.OK(w, statusResponse{Status: "limits_reset"})
}

func (h *Handler) checkLimits(w http.ResponseWriter, r *http.Request) {
	id, ok := h.telegramID(w, r)
	if !ok {
		return
	}
	usage, err := h.svc.Peek(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpapi.OK(w, usageResponse{TodaysRequestsCount: usage.Count, MaxRequestsPerDay: usage.Max})
}

func (h *Handler) incrementLimits(w http.ResponseWriter, r *http.Request) {
	id, ok := h.telegramID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Increment(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpapi.OK(w, statusResponse{Status: "limits_incremented"})
}

func (h *Handler) checkLimit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.telegramID(w, r)
	if !ok {
		return
	}
	decision, usage, err := h.svc.CheckAndConsume(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpapi.OK(w, checkLimitResponse{
		Allowed:       decision == Allowed,
		usageResponse: usageResponse{TodaysRequestsCount: usage.Count, MaxRequestsPerDay: usage.Max},
	})
}

// telegramID parses the request body and writes a 400 when the id is missing or invalid.
func (h *Handler) telegramID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var body struct {
		TelegramID json.RawMessage `json:"telegram_id"`
	}
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		if errors.Is(err, io.EOF) {
			httpapi.HandleError(w, errIDRequired)
			return 0, false
		}
		httpapi.HandleError(w, httpapi.BadRequest("invalid JSON body"))
		return 0, false
	}
	id, err := ParseTelegramID(body.TelegramID)
	if err != nil {
		httpapi.HandleError(w, err)
		return 0, false
	}
	return id, true
}

// ParseTelegramID accepts a positive JSON integer or a string of digits.
func ParseTelegramID(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errIDRequired
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, errIDInvalid
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return 0, errIDRequired
		}
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		return 0, errIDInvalid
	}
	return id, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrInvalidID) {
		httpapi.HandleError(w, errIDInvalid)
		return
	}
	logger.LogEvent(r.Context(), logger.SVCQuota, slog.LevelError, "quota.store",
		slog.String("path", r.URL.Path),
		slog.String("err", err.Error()),
	)
	httpapi.HandleError(w, err)
}
