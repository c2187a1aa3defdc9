package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"homewatch/internal/app"
	"homewatch/internal/config"
	"homewatch/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	application, err := app.NewApp(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize application: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		appLogger.Error("Server stopped with error: %v", err)
		os.Exit(1)
	}
}
