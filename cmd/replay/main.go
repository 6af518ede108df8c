package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"chat_trader/backtest"
	"chat_trader/internal/infra"
)

// Re-interprets every journaled trade command and reports any whose
// descriptor differs from what was recorded. Exit status 2 means drift.
func main() {
	dbPath := flag.String("db", "", "journal path (default: workspace data/<storage.db_file>)")
	from := flag.Uint64("from", 1, "first sequence number to check")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if *dbPath == "" {
		cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
		if err != nil {
			slog.Warn("Config not loaded, using defaults", slog.Any("error", err))
			cfg = infra.DefaultConfig()
		}
		*dbPath = infra.DataPath(filepath.Join(infra.GetWorkspaceDir(), "data"), cfg.Storage.DBFile)
	}
	if _, err := os.Stat(*dbPath); err != nil {
		slog.Error("❌ Journal not found", slog.String("path", *dbPath), slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("🔁 Replaying command journal", slog.String("path", *dbPath), slog.Uint64("from", *from))
	r, err := backtest.NewReplayer(*dbPath)
	if err != nil {
		slog.Error("❌ Failed to open journal", slog.Any("error", err))
		os.Exit(1)
	}
	defer r.Close()

	rep, err := r.RunReplay(context.Background(), *from)
	if err != nil {
		slog.Error("❌ Replay failed", slog.Any("error", err))
		os.Exit(1)
	}
	rep.WriteTo(os.Stdout)

	if !rep.OK() {
		r.Close()
		os.Exit(2)
	}
	slog.Info("✅ Every command replayed identically")
}
