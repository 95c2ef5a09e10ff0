package main

import (
	"context"
	"log"
	"time"

	"github.com/m3rciful/moviebot/core/bootstrap"
	corecmd "github.com/m3rciful/moviebot/core/cmd"
	coreconfig "github.com/m3rciful/moviebot/core/config"
	"github.com/m3rciful/moviebot/core/httpapi"
	"github.com/m3rciful/moviebot/core/httpclient"
	"github.com/m3rciful/moviebot/internal/generation"
)

func main() {
	if err := corecmd.Run(corecmd.Options{
		Service:           coreconfig.ServiceGeneration,
		DefaultConfigPath: "configs/gensvc.yaml",
		Bootstrap:         bootstrapGeneration,
	}); err != nil {
		log.Fatal(err)
	}
}

func bootstrapGeneration(ctx context.Context, cfg *coreconfig.Config) (corecmd.App, error) {
	if _, err := bootstrap.Run(ctx, bootstrap.Options{Config: cfg}); err != nil {
		return nil, err
	}

	g := cfg.Generation
	client := generation.NewDeepSeekClient(generation.DeepSeekConfig{
		APIURL:        g.APIURL,
		APIKey:        g.APIKey,
		Model:         g.Model,
		RatePerSecond: g.RatePerSecond,
		Burst:         g.Burst,
	}, httpclient.New(httpclient.Options{Timeout: time.Duration(g.TimeoutSeconds) * time.Second}))

	r := httpapi.NewRouter(generation.WritePanic, nil)
	generation.NewHandler(client).Routes(r)
	return httpapi.NewServer(cfg.HTTP, r), nil
}
