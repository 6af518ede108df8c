package app

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"chat_trader/internal/engine"
	"chat_trader/internal/execution"
	"chat_trader/internal/infra"
	"chat_trader/internal/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	WorkDir    string
	EventStore *storage.EventStore
	Snapshots  *storage.SnapshotManager
	Quotes     *infra.QuoteClient
	Factory    *execution.Factory
	Metrics    *infra.Metrics

	unlock func()
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (Config, Dir, DB, etc.)
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping Chat Trader...")

	// 1. Load Config (Dynamic Path Resolution)
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err // Let main handle the error
	}

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))

	return b.InitializeWith(cfg, infra.GetWorkspaceDir())
}

// InitializeWith runs the remaining steps against an already loaded config
// and an explicit workspace directory.
func (b *Bootstrap) InitializeWith(cfg *infra.Config, workDir string) error {
	b.Config = cfg
	b.WorkDir = workDir

	// 3. Workspace layout: _workspace/data, _workspace/logs
	dataDir := filepath.Join(workDir, "data")
	logDir := filepath.Join(workDir, "logs")
	snapDir := infra.DataPath(dataDir, cfg.Storage.SnapshotDir)

	for _, dir := range []string{dataDir, logDir, snapDir} {
		if err := infra.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
	}

	// 3.1 Singleton Instance Lock
	// Two processes appending to the same journal would break the sequence.
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	// 4. EventStore (Single-Writer WAL DB)
	dbPath := infra.DataPath(dataDir, cfg.Storage.DBFile)
	evStore, err := storage.NewEventStore(dbPath)
	if err != nil {
		b.Close()
		return err
	}
	b.EventStore = evStore
	slog.Info("✅ EventStore initialized (WAL-mode)", "path", dbPath, "mode", cfg.Trading.Mode)

	b.Snapshots = storage.NewSnapshotManager(snapDir)
	slog.Info("✅ Snapshot directory ready", "path", snapDir, "keep", cfg.Storage.SnapshotKeep)

	// 5. Quotes, execution venues, metrics
	b.Quotes = infra.NewQuoteClient(cfg)
	b.Factory = execution.NewFactory(cfg, b.Quotes)
	b.Metrics = infra.NewMetrics()
	b.Factory.SetBreakerObserver(b.Metrics.BreakerChanged)
	slog.Info("✅ Quote client ready", "url", cfg.Quotes.URL, "watchlist", len(cfg.Quotes.Watchlist))

	return nil
}

// NewDispatcher builds the command dispatcher on top of the initialized
// components. notify may be nil when no chat transport is running.
func (b *Bootstrap) NewDispatcher(notify func(chatID int64, text string)) (*engine.Dispatcher, error) {
	return engine.NewDispatcher(engine.Options{
		Config:    b.Config,
		Store:     b.EventStore,
		Snapshots: b.Snapshots,
		Factory:   b.Factory,
		Quotes:    b.Quotes,
		Metrics:   b.Metrics,
		Notify:    notify,
		DumpPath:  filepath.Join(b.WorkDir, "logs", "panic_dump.json"),
	})
}

// Close stops the quote poller, closes the store and releases the lock.
func (b *Bootstrap) Close() {
	if b.Quotes != nil {
		b.Quotes.Stop()
	}
	if b.EventStore != nil {
		if err := b.EventStore.Close(); err != nil {
			slog.Error("Failed to close event store", slog.Any("error", err))
		}
		b.EventStore = nil
	}
	if b.unlock != nil {
		b.unlock()
		b.unlock = nil
	}
}
