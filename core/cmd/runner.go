package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/moviebot/core/config"
	"github.com/m3rciful/moviebot/core/logger"
)

// App is a bootstrapped service.
type App interface {
	Run(ctx context.Context) error
}

// AppFunc adapts a function to App.
type AppFunc func(ctx context.Context) error

// Run calls f.
func (f AppFunc) Run(ctx context.Context) error { return f(ctx) }

// Options describe how to load configuration, bootstrap the app, and run it.
type Options struct {
	// Service selects the config section rules, see coreconfig.Service*.
	Service           string
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path, service string) (*coreconfig.Config, error)
	Bootstrap  func(ctx context.Context, cfg *coreconfig.Config) (App, error)

	ShutdownLogger func() error
}

// Run loads configuration, bootstraps the app, and runs it until SIGINT or SIGTERM.
func Run(opts Options) error {
	if opts.Bootstrap == nil {
		return fmt.Errorf("cmd: Bootstrap is required")
	}
	load := opts.LoadConfig
	if load == nil {
		load = coreconfig.Load
	}

	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	cfgPath := os.Getenv(env)
	if cfgPath == "" {
		cfgPath = opts.DefaultConfigPath
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := load(cfgPath, opts.Service)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startedAt := time.Now()
	app, err := opts.Bootstrap(ctx, cfg)

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}

	appLog := logger.Component("app")
	appLog.Info("app ready",
		slog.String("event", "ready"),
		slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
	)
	runErr := app.Run(ctx)
	appLog.Info("shutting down...",
		slog.String("event", "shutdown"),
	)
	return runErr
}
