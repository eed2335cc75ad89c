package main

import (
	"log/slog"
	"os"

	"hrerp/internal/app/server"
	"hrerp/internal/platform/config"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	if err := server.Run(cfg); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
