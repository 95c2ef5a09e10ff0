package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/moviebot/core/bootstrap"
	corecmd "github.com/m3rciful/moviebot/core/cmd"
	coreconfig "github.com/m3rciful/moviebot/core/config"
	"github.com/m3rciful/moviebot/core/httpapi"
	"github.com/m3rciful/moviebot/core/httpclient"
	"github.com/m3rciful/moviebot/core/logger"
	tg "github.com/m3rciful/moviebot/core/telegram"
	"github.com/m3rciful/moviebot/core/telegram/sender"
	"github.com/m3rciful/moviebot/internal/bot"
	"github.com/m3rciful/moviebot/internal/generation"
	"github.com/m3rciful/moviebot/internal/quotaclient"
	"github.com/m3rciful/moviebot/internal/session"
	"github.com/m3rciful/moviebot/internal/summary"
)

const (
	configEnv         = "CONFIG_PATH"
	defaultConfigPath = "configs/bot.yaml"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "set-commands" {
		if err := setCommands(); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := corecmd.Run(corecmd.Options{
		Service:           coreconfig.ServiceBot,
		ConfigEnvVar:      configEnv,
		DefaultConfigPath: defaultConfigPath,
		Bootstrap:         bootstrapBot,
	}); err != nil {
		log.Fatal(err)
	}
}

// setCommands publishes the command menu and exits.
func setCommands() error {
	path := os.Getenv(configEnv)
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := coreconfig.Load(path, coreconfig.ServiceBot)
	if err != nil {
		return err
	}
	if err := logger.InitLogger(cfg); err != nil {
		return err
	}
	defer logger.Shutdown()

	tgBot, err := tg.NewBot(cfg)
	if err != nil {
		return err
	}
	if err := tg.InitBotCommands(tgBot, bot.NewRegistry(nil)); err != nil {
		return err
	}
	log.Println("bot commands updated")
	return nil
}

type sessionBackend interface {
	session.Store
	Close() error
}

func bootstrapBot(ctx context.Context, cfg *coreconfig.Config) (corecmd.App, error) {
	if _, err := bootstrap.Run(ctx, bootstrap.Options{Config: cfg}); err != nil {
		return nil, err
	}

	sessions, health := openSessions(cfg)

	quotaAPI := quotaclient.New(cfg.Services.QuotaURL, httpclient.New(httpclient.Options{
		Timeout: time.Duration(cfg.Services.TimeoutSeconds) * time.Second,
	}))
	genTimeout := time.Duration(cfg.Services.GenerationTimeoutSeconds) * time.Second
	generator := generation.NewProxyClient(cfg.Services.GenerationURL, httpclient.New(httpclient.Options{
		Timeout: genTimeout + 5*time.Second,
	}))

	tgBot, err := tg.NewBot(cfg)
	if err != nil {
		_ = sessions.Close()
		return nil, err
	}
	messenger := sender.New(tgBot)

	svc := bot.NewService(bot.Options{
		Sessions:             sessions,
		Quota:                quotaAPI,
		Summary:              summary.New(quotaAPI, generator, messenger, genTimeout),
		Messenger:            messenger,
		SubscriptionsEnabled: cfg.Bot.SubscriptionsEnabled,
	})
	reg := bot.NewRegistry(svc)

	r := httpapi.NewRouter(nil, health)
	runOpts := tg.RunOptions{Config: cfg, Registry: reg}
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		bot.NewWebhook(svc, cfg.Webhook.Secret).Routes(r, cfg.Webhook.Path)
	} else {
		runOpts.Middlewares = tg.DefaultMiddlewares(cfg, bot.OnRateLimited)
		runOpts.Routes = bot.Routes(reg)
	}
	runOpts.Serve = httpapi.NewServer(cfg.HTTP, r).Run
	runOpts.OnStop = func(context.Context) error {
		return sessions.Close()
	}

	return corecmd.AppFunc(func(ctx context.Context) error {
		return tg.Run(ctx, tgBot, runOpts)
	}), nil
}

// openSessions uses Redis when an address is configured and process memory otherwise.
func openSessions(cfg *coreconfig.Config) (sessionBackend, httpapi.HealthCheck) {
	ttl := cfg.SessionTTL()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := session.NewRedisStore(client, ttl)
		return redisSessions{RedisStore: store, client: client}, store.Ping
	}
	store := session.NewMemoryStore(ttl)
	store.StartJanitor(ttl / 4)
	return store, nil
}

type redisSessions struct {
	*session.RedisStore
	client *redis.Client
}

func (r redisSessions) Close() error { return r.client.Close() }
