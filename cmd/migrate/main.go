package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/odyssey-erp/odyssey-grn/internal/app"
	"github.com/odyssey-erp/odyssey-grn/internal/platform/db"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping migrations")
		return
	}

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|redo|reset")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg).With(slog.String("cmd", *cmd))

	if err := db.Migrate(context.Background(), cfg.PGDSN, *cmd, flag.Args()...); err != nil {
		logger.Error("migrate", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migrate done")
}
