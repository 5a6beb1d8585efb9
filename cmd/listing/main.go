// Command listing serves the listing JSON API without the HTML frontend or
// login endpoints. Tokens are still verified on every request.
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
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if err := logger.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		logger.Fatalf("logger: %v", err)
	}
	if port := os.Getenv("LISTING_SERVICE_PORT"); port != "" {
		cfg.Server.Port = port
	} else {
		cfg.Server.Port = "5010"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.New(ctx, cfg, server.Options{})
	if err != nil {
		logger.Fatalf("startup: %v", err)
	}
	defer app.Close(context.Background())

	if err := app.Run(ctx); err != nil {
		logger.Errorf("listing service failed: %v", err)
	}
}
