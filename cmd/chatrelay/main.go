package main

import (
	"context"

	"github.com/joho/godotenv"

	"chatrelay/internal/app"
	"chatrelay/pkg/config"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/shutdown"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")

	flags := config.ParseConfigFlags()
	eff, err := config.LoadEffective(flags)
	if err != nil {
		logger.Init()
		shutdown.Abort("config load failed", err, "", 0)
	}

	logger.InitWithLevel(eff.Config.Logging.Level)
	defer logger.Sync()

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	a, err := app.New(ctx, eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("startup failed", err, eff.DBPath, 0)
	}

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server failed", err, eff.DBPath, 0)
	}

	// signal-driven exit: drain connections within the graceful window
	stopCtx, stopCancel := context.WithTimeout(context.Background(), app.GracefulTimeout)
	defer stopCancel()
	if err := a.Shutdown(stopCtx); err != nil {
		logger.Error("shutdown_incomplete", "error", err)
	}
}
