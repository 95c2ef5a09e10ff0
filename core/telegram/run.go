package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/moviebot/core/config"
	"github.com/m3rciful/moviebot/core/httpclient"
	"github.com/m3rciful/moviebot/core/logger"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// NewBot builds the telebot client for cfg. In webhook mode the bot is offline: it only
// sends, and updates are fed in by the HTTP listener.
func NewBot(cfg *coreconfig.Config) (*tele.Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram: nil config provided")
	}
	poller := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
	})

	pollTimeout := defaultLongPollTimeout
	if cfg.Telegram.LongPollTimeoutSeconds > 0 {
		pollTimeout = time.Duration(cfg.Telegram.LongPollTimeoutSeconds) * time.Second
	}
	settings := tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  poller,
		Offline: poller == nil,
		Client:  httpclient.New(httpclient.Options{Timeout: pollTimeout + 10*time.Second}),
		OnError: func(err error, c tele.Context) {
			logger.TG.Error("handler error",
				slog.String("event", "tg.error"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		},
	}

	start := time.Now()
	bot, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	logger.TWire.Info("bot built",
		slog.String("event", "bot.build"),
		slog.String("mode", modeName(cfg)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return bot, nil
}

// RunOptions controls the behaviour of Run.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	Middlewares []Middleware
	Routes      []Route

	// Serve runs the service HTTP listener for the lifetime of the bot. In webhook mode it
	// is the only source of updates.
	Serve func(ctx context.Context) error

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

// Run wires routes on bot and runs it until ctx is done or Serve fails.
func Run(ctx context.Context, bot *tele.Bot, opts RunOptions) error {
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	cfg := opts.Config
	webhook := strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeWebhook)

	for _, mw := range opts.Middlewares {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
	}
	for _, route := range opts.Routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
	}

	if webhook {
		if err := registerWebhook(bot, cfg); err != nil {
			return err
		}
	} else if !opts.DisableWebhookCleanup {
		if err := bot.RemoveWebhook(false); err != nil {
			logger.TG.Warn("failed to delete webhook",
				slog.String("event", "delete_webhook"),
				slog.String("mode", "polling"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		} else {
			logger.TG.Info("webhook deleted",
				slog.String("event", "delete_webhook"),
				slog.String("mode", "polling"),
			)
		}
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	if opts.Serve != nil {
		go func() {
			serveErr <- opts.Serve(ctx)
		}()
	}

	runDone := make(chan struct{})
	if webhook {
		close(runDone)
	} else {
		go func() {
			bot.Start()
			close(runDone)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = err
		cancel()
	}
	if !webhook {
		bot.Stop()
	}
	<-runDone
	if opts.Serve != nil && runErr == nil {
		runErr = <-serveErr
	}

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx))
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return stopErr
}

func registerWebhook(bot *tele.Bot, cfg *coreconfig.Config) error {
	hook := &tele.Webhook{
		SecretToken: cfg.Webhook.Secret,
		Endpoint:    &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
	}
	if err := bot.SetWebhook(hook); err != nil {
		return fmt.Errorf("telegram: set webhook: %w", err)
	}
	logger.TG.Info("webhook mode",
		slog.String("event", "mode"),
		slog.String("mode", "webhook"),
		slog.String("public_url", cfg.Webhook.URL),
		slog.String("path", cfg.Webhook.Path),
	)
	return nil
}

func modeName(cfg *coreconfig.Config) string {
	if strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeWebhook) {
		return "webhook"
	}
	return "polling"
}
