package storage

import (
	"os"
	"path/filepath"
	"testing"

	"chat_trader/internal/domain"

	"github.com/shopspring/decimal"
)

func samplePortfolio() domain.Portfolio {
	return domain.Portfolio{
		Cash: decimal.RequireFromString("98125.50"),
		Positions: map[string]*domain.Position{
			"AAPL": {Symbol: "AAPL", Qty: decimal.NewFromInt(10), AvgPrice: decimal.RequireFromString("187.45")},
		},
		OpenOrders: []domain.Order{{ID: "ord_1", Status: domain.OrderStatusOpen}},
	}
}

func TestSnapshot_SaveAndLoad(t *testing.T) {
	sm := NewSnapshotManager(t.TempDir())

	p := samplePortfolio()
	snap := CreateSnapshot(100, p)
	p.Positions["AAPL"].Qty = decimal.Zero

	if err := sm.Save(snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := sm.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected snapshot, got nil")
	}
	if loaded.Seq != 100 {
		t.Errorf("Expected seq 100, got %d", loaded.Seq)
	}
	if !loaded.Portfolio.Cash.Equal(decimal.RequireFromString("98125.5")) {
		t.Errorf("cash mismatch: %s", loaded.Portfolio.Cash)
	}
	if pos := loaded.Portfolio.Positions["AAPL"]; pos == nil || !pos.Qty.Equal(decimal.NewFromInt(10)) {
		t.Errorf("position not captured before mutation: %+v", pos)
	}
	if len(loaded.Portfolio.OpenOrders) != 1 {
		t.Errorf("open orders = %d, want 1", len(loaded.Portfolio.OpenOrders))
	}
}

func TestSnapshot_LoadLatest_MultipleSnapshots(t *testing.T) {
	sm := NewSnapshotManager(t.TempDir())

	for _, seq := range []uint64{10, 50, 30} {
		snap := &Snapshot{Seq: seq, TsUnix: int64(seq)}
		if err := sm.Save(snap); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	loaded, err := sm.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if loaded.Seq != 50 {
		t.Errorf("Expected latest seq 50, got %d", loaded.Seq)
	}
	if loaded.Portfolio.Positions == nil {
		t.Error("Positions map should be initialized on load")
	}
}

func TestSnapshot_LoadLatest_NoSnapshots(t *testing.T) {
	sm := NewSnapshotManager(filepath.Join(t.TempDir(), "missing"))

	loaded, err := sm.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if loaded != nil {
		t.Errorf("Expected nil for empty dir, got %v", loaded)
	}
}

func TestSnapshot_Cleanup(t *testing.T) {
	dir := t.TempDir()
	sm := NewSnapshotManager(dir)

	for seq := uint64(1); seq <= 5; seq++ {
		if err := sm.Save(&Snapshot{Seq: seq, TsUnix: int64(seq)}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	if err := sm.Cleanup(2); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("Expected 2 snapshots after cleanup, got %d", len(entries))
	}

	loaded, _ := sm.LoadLatest()
	if loaded.Seq != 5 {
		t.Errorf("Expected seq 5 to remain, got %d", loaded.Seq)
	}
}
