package warehouse

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	contractx "sellerpilot/agent/contract"
)

func writeSnapshot(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestSnapshotPerSellerFile(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "seller-7.json", `{
		"profile": {"total_products": 42, "active_products": 40},
		"compliance_summary": "one late-shipment warning"
	}`)

	w := New(Config{DataDir: dir})
	snap, err := w.Snapshot(context.Background(), "seller-7")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Profile.SellerID != "seller-7" || snap.Profile.TotalProducts != 42 {
		t.Fatalf("snapshot: %+v", snap)
	}
}

func TestSnapshotFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "default.json", `{"compliance_summary": "no data on file"}`)

	w := New(Config{DataDir: dir})
	snap, err := w.Snapshot(context.Background(), "unknown-seller")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.ComplianceSummary != "no data on file" {
		t.Fatalf("snapshot: %+v", snap)
	}
}

func TestSnapshotEmptyWhenNothingOnDisk(t *testing.T) {
	w := New(Config{DataDir: t.TempDir()})
	snap, err := w.Snapshot(context.Background(), "")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Profile.TotalProducts != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestSnapshotRejectsPathEscapes(t *testing.T) {
	w := New(Config{DataDir: t.TempDir()})
	_, err := w.Snapshot(context.Background(), "../etc/passwd")
	if !errors.Is(err, contractx.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
}
