// Package summary runs the /generate_summary flow: settings check, quota, prompt,
// generation and delivery.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/moviebot/core/logger"
	"github.com/m3rciful/moviebot/internal/generation"
	"github.com/m3rciful/moviebot/internal/quotaclient"
	"github.com/m3rciful/moviebot/internal/session"
)

// Outcome statuses.
const (
	StatusIncompleteSettings = "incomplete_settings"
	StatusLimitsCheckFailed  = "limits_check_failed"
	StatusLimitExceeded      = "limit_exceeded"
	StatusGenerationFailed   = "summary_generation_failed"
	StatusGenerated          = "summary_generated"
)

// DefaultTimeout bounds one generation call.
const DefaultTimeout = 120 * time.Second

const (
	msgNoMovie       = "⚠️ Сначала укажите фильм с помощью /set_movie."
	msgCheckingQuota = "🔄 Проверка лимитов запросов..."
	msgQuotaFailed   = "❌ Ошибка проверки лимитов."
	msgQuotaDenied   = "🚫 Лимит запросов исчерпан: %d/%d"
	msgQuotaOK       = "✅ Лимиты не превышены! (%d/%d)"
	msgGenerating    = "🛠 Генерация пересказа...\n🎬 Фильм: %s\n🎭 Стиль: %s\n\nP.S. Обычно это занимает примерно 30 сек."
	msgFailed        = "❌ Ошибка генерации пересказа."
)

// Quota consumes one request of a user's daily allowance.
type Quota interface {
	CheckAndConsume(ctx context.Context, telegramID int64) (quotaclient.Decision, error)
}

// Messenger delivers text to a chat.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Request is one /generate_summary invocation.
type Request struct {
	ChatID  int64
	UserID  int64
	Session session.Session
}

// Outcome is the terminal status of a run.
type Outcome struct {
	Success bool
	Status  string
}

// Orchestrator sequences the summary flow. Quota is consumed before generation and is not
// returned when generation fails.
type Orchestrator struct {
	quota     Quota
	generator generation.Generator
	messenger Messenger
	timeout   time.Duration
}

// New returns an Orchestrator. A non-positive timeout uses DefaultTimeout.
func New(quota Quota, generator generation.Generator, messenger Messenger, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Orchestrator{quota: quota, generator: generator, messenger: messenger, timeout: timeout}
}

// Generate runs the flow for req and reports how it ended.
func (o *Orchestrator) Generate(ctx context.Context, req Request) Outcome {
	movie := req.Session.Movie
	style := req.Session.EffectiveStyle()
	if movie == "" {
		o.send(ctx, req.ChatID, msgNoMovie)
		return Outcome{Status: StatusIncompleteSettings}
	}

	o.send(ctx, req.ChatID, msgCheckingQuota)
	decision, err := o.quota.CheckAndConsume(ctx, req.UserID)
	if err != nil {
		logger.LogEvent(ctx, logger.SVCBot, slog.LevelWarn, "summary.quota",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		o.send(ctx, req.ChatID, msgQuotaFailed)
		return Outcome{Status: StatusLimitsCheckFailed}
	}
	if !decision.Allowed {
		logger.LogEvent(ctx, logger.SVCBot, slog.LevelInfo, "summary.quota",
			slog.String("status", "denied"),
			slog.Int("count", decision.TodaysRequestsCount),
			slog.Int("max", decision.MaxRequestsPerDay),
		)
		o.send(ctx, req.ChatID, fmt.Sprintf(msgQuotaDenied, decision.TodaysRequestsCount, decision.MaxRequestsPerDay))
		return Outcome{Status: StatusLimitExceeded}
	}
	o.send(ctx, req.ChatID, fmt.Sprintf(msgQuotaOK, decision.TodaysRequestsCount, decision.MaxRequestsPerDay))
	o.send(ctx, req.ChatID, fmt.Sprintf(msgGenerating, movie, style))

	genCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	start := time.Now()
	text, err := o.generator.Generate(genCtx, BuildPrompt(movie, style))
	if err == nil && text == "" {
		err = generation.ErrEmptyText
	}
	if err != nil {
		logger.LogEvent(ctx, logger.SVCBot, slog.LevelWarn, "summary.generate",
			slog.String("outcome", logger.Outcome(err)),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", logger.SanitizeLimit(err.Error(), 300)),
		)
		o.send(ctx, req.ChatID, msgFailed)
		return Outcome{Status: StatusGenerationFailed}
	}

	logger.LogEvent(ctx, logger.SVCBot, slog.LevelInfo, "summary.generate",
		slog.String("outcome", "ok"),
		slog.Duration("duration", logger.Took(start)),
		slog.Int("text_len", len([]rune(text))),
	)
	o.send(ctx, req.ChatID, text)
	return Outcome{Success: true, Status: StatusGenerated}
}

// send delivers text; a failed delivery is logged and does not change the outcome.
func (o *Orchestrator) send(ctx context.Context, chatID int64, text string) {
	if err := o.messenger.Send(ctx, chatID, text); err != nil {
		logger.LogEvent(ctx, logger.SVCBot, slog.LevelWarn, "summary.send",
			slog.String("status", "fail"),
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
	}
}
