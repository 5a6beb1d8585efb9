package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/propgate/propgate/internal/config"
	"github.com/propgate/propgate/internal/server"
	"github.com/propgate/propgate/pkg/logger"
)

func main() {
	// LOG_LEVEL is applied before config so config warnings respect it
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if err := logger.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		logger.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v minio=%v", cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Enabled())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.New(ctx, cfg, server.Options{Pages: true, Auth: true})
	if err != nil {
		logger.Fatalf("startup: %v", err)
	}
	defer app.Close(context.Background())

	if err := app.Run(ctx); err != nil {
		logger.Errorf("server failed: %v", err)
	}
}
