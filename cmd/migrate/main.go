package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/smartreceipts/internal/config"
	"github.com/MrJamesThe3rd/smartreceipts/internal/database"
)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|up-to|down|down-to|redo|reset|status|version")
	version := flag.String("version", "", "target version for up-to and down-to")

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()})))

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var args []string
	if *version != "" {
		args = append(args, *version)
	}

	if err := database.Migrate(context.Background(), db, *cmd, args...); err != nil {
		slog.Error("migration failed", "cmd", *cmd, "error", err)
		os.Exit(1)
	}

	slog.Info("migration finished", "cmd", *cmd)
}
