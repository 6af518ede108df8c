package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"chat_trader/internal/execution"
	"chat_trader/internal/infra"
)

func TestInitializeWith(t *testing.T) {
	dir := t.TempDir()
	cfg := infra.DefaultConfig()

	b := NewBootstrap()
	if err := b.InitializeWith(cfg, dir); err != nil {
		t.Fatalf("InitializeWith: %v", err)
	}
	defer b.Close()

	for _, p := range []string{
		filepath.Join(dir, "data", "events.db"),
		filepath.Join(dir, "data", "snapshots"),
		filepath.Join(dir, "logs"),
		filepath.Join(dir, "instance.lock"),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}

	d, err := b.NewDispatcher(nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	if err := d.Recover(context.Background()); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if d.Mode() != execution.ModePaper {
		t.Errorf("mode = %s, want PAPER", d.Mode())
	}
	if d.NextSeq() != 1 {
		t.Errorf("next seq = %d, want 1", d.NextSeq())
	}
}

func TestInitializeWithRejectsSecondInstance(t *testing.T) {
	dir := t.TempDir()

	first := NewBootstrap()
	if err := first.InitializeWith(infra.DefaultConfig(), dir); err != nil {
		t.Fatalf("first: %v", err)
	}

	second := NewBootstrap()
	if err := second.InitializeWith(infra.DefaultConfig(), dir); err == nil {
		second.Close()
		t.Fatal("expected lock error for a second instance")
	}

	first.Close()
	if _, err := os.Stat(filepath.Join(dir, "instance.lock")); !os.IsNotExist(err) {
		t.Errorf("lock file should be removed on Close, stat err = %v", err)
	}

	third := NewBootstrap()
	if err := third.InitializeWith(infra.DefaultConfig(), dir); err != nil {
		t.Fatalf("after Close: %v", err)
	}
	third.Close()
}

func TestInitializeWithAbsoluteStoragePaths(t *testing.T) {
	dir := t.TempDir()
	elsewhere := t.TempDir()

	cfg := infra.DefaultConfig()
	cfg.Storage.DBFile = filepath.Join(elsewhere, "journal.db")
	cfg.Storage.SnapshotDir = filepath.Join(elsewhere, "snaps")

	b := NewBootstrap()
	if err := b.InitializeWith(cfg, dir); err != nil {
		t.Fatalf("InitializeWith: %v", err)
	}
	defer b.Close()

	if _, err := os.Stat(cfg.Storage.DBFile); err != nil {
		t.Errorf("db not created at absolute path: %v", err)
	}
	if _, err := os.Stat(cfg.Storage.SnapshotDir); err != nil {
		t.Errorf("snapshot dir not created at absolute path: %v", err)
	}
}
