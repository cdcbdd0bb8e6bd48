package dispenser

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/pillbox/internal/cli"
	"github.com/julianstephens/pillbox/internal/device"
	"github.com/julianstephens/pillbox/internal/storage/sqlite"
)

// unreachable is a gateway that never answers.
type unreachable struct{}

func (unreachable) Dispense(context.Context, int) (device.Outcome, error) {
	return device.Outcome{}, device.ErrCommunication
}

func (unreachable) CheckStatus(context.Context) (device.Status, error) {
	return device.Status{}, device.ErrCommunication
}

func setupTestDB(t *testing.T, g device.Gateway) (*cli.Context, func()) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store := sqlite.NewStore(dbPath)
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}

	ctx := cli.NewContext(store, g, time.Second)
	cleanup := func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}
	return ctx, cleanup
}

func TestStatusCmd(t *testing.T) {
	ctx, cleanup := setupTestDB(t, device.NewSimulator(device.WithSeed(1), device.WithLatency(0, 0)))
	defer cleanup()

	if err := (&StatusCmd{Cached: true}).Run(ctx); err != nil {
		t.Errorf("cached status before contact failed: %v", err)
	}

	if err := (&StatusCmd{}).Run(ctx); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	snap, ok, err := ctx.Tracker.Device()
	if err != nil || !ok {
		t.Fatalf("snapshot not stored: ok=%v err=%v", ok, err)
	}
	if !snap.IsOnline || snap.BatteryPercent < 20 || snap.BatteryPercent > 100 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	if err := (&StatusCmd{Cached: true}).Run(ctx); err != nil {
		t.Errorf("cached status failed: %v", err)
	}
}

func TestStatusCmd_Unreachable(t *testing.T) {
	ctx, cleanup := setupTestDB(t, unreachable{})
	defer cleanup()

	err := (&StatusCmd{}).Run(ctx)
	if !errors.Is(err, device.ErrCommunication) {
		t.Fatalf("expected communication error, got %v", err)
	}

	snap, ok, _ := ctx.Tracker.Device()
	if !ok || snap.IsOnline {
		t.Errorf("unreachable device should be recorded offline: %+v (ok=%v)", snap, ok)
	}
}
