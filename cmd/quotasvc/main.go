package main

import (
	"context"
	"log"

	"github.com/m3rciful/moviebot/core/bootstrap"
	corecmd "github.com/m3rciful/moviebot/core/cmd"
	coreconfig "github.com/m3rciful/moviebot/core/config"
	"github.com/m3rciful/moviebot/core/httpapi"
	"github.com/m3rciful/moviebot/internal/quota"
)

func main() {
	if err := corecmd.Run(corecmd.Options{
		Service:           coreconfig.ServiceQuota,
		DefaultConfigPath: "configs/quotasvc.yaml",
		Bootstrap:         bootstrapQuota,
	}); err != nil {
		log.Fatal(err)
	}
}

func bootstrapQuota(ctx context.Context, cfg *coreconfig.Config) (corecmd.App, error) {
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:       cfg,
		WithDatabase: cfg.Quota.Store == coreconfig.StorePostgres,
	})
	if err != nil {
		return nil, err
	}

	var (
		store  quota.Store
		health httpapi.HealthCheck
	)
	if res.DB != nil {
		pg := quota.NewPostgresStore(res.DB)
		store, health = pg, pg.Ping
	} else {
		store = quota.NewMemoryStore()
	}

	svc := quota.NewService(store, quota.Options{
		Limits:   quota.Limits{Free: cfg.Quota.FreeDailyLimit, Subscriber: cfg.Quota.SubscriberDailyLimit},
		Location: cfg.Quota.Location(),
	})
	r := httpapi.NewRouter(nil, health)
	quota.NewHandler(svc).Routes(r)
	srv := httpapi.NewServer(cfg.HTTP, r)

	return corecmd.AppFunc(func(ctx context.Context) error {
		defer res.Close()
		return srv.Run(ctx)
	}), nil
}
