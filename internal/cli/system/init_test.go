package system

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/pillbox/internal/cli"
	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/device"
	"github.com/julianstephens/pillbox/internal/models"
	"github.com/julianstephens/pillbox/internal/storage/sqlite"
	"github.com/julianstephens/pillbox/internal/tracker"
)

func setupTestInitDB(t *testing.T) (*cli.Context, string, func()) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	store := sqlite.NewStore(dbPath)
	ctx := cli.NewContext(store, device.NewSimulator(device.WithLatency(0, 0)), time.Second)

	cleanup := func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}

	return ctx, dbPath, cleanup
}

func TestInitCmd_Success(t *testing.T) {
	ctx, dbPath, cleanup := setupTestInitDB(t)
	defer cleanup()

	cmd := &InitCmd{}
	if err := cmd.Run(ctx); err != nil {
		t.Errorf("init command failed: %v", err)
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file was not created at %s", dbPath)
	}
}

func TestInitCmd_Idempotent(t *testing.T) {
	ctx, _, cleanup := setupTestInitDB(t)
	defer cleanup()

	cmd := &InitCmd{}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("first init failed: %v", err)
	}
	if err := cmd.Run(ctx); err != nil {
		t.Errorf("second init failed (should be idempotent): %v", err)
	}
}

func TestInitCmd_ForceDeletesExisting(t *testing.T) {
	ctx, dbPath, cleanup := setupTestInitDB(t)
	defer cleanup()

	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatalf("initial init failed: %v", err)
	}

	settings, err := ctx.Store.GetSettings()
	if err != nil {
		t.Fatalf("failed to get initial settings: %v", err)
	}
	settings.TimeFormat = constants.ClockFormat24h
	if err := ctx.Store.SaveSettings(settings); err != nil {
		t.Fatalf("failed to save modified settings: %v", err)
	}

	if err := (&InitCmd{Force: true}).Run(ctx); err != nil {
		t.Fatalf("init with force failed: %v", err)
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatalf("database file was not recreated after force")
	}

	newSettings, err := ctx.Store.GetSettings()
	if err != nil {
		t.Fatalf("failed to get settings after force: %v", err)
	}
	if newSettings.TimeFormat != constants.DefaultTimeFormat {
		t.Errorf("expected default time format %q, got %q", constants.DefaultTimeFormat, newSettings.TimeFormat)
	}
}

func TestInitCmd_ForceWithNonExistentDatabase(t *testing.T) {
	ctx, dbPath, cleanup := setupTestInitDB(t)
	defer cleanup()

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatalf("database file should not exist initially")
	}

	if err := (&InitCmd{Force: true}).Run(ctx); err != nil {
		t.Fatalf("init with force on non-existent database failed: %v", err)
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file was not created")
	}
}

func TestInitCmd_ForceRejectsSameSource(t *testing.T) {
	ctx, dbPath, cleanup := setupTestInitDB(t)
	defer cleanup()

	if err := (&InitCmd{Force: true, Source: dbPath}).Run(ctx); err == nil {
		t.Error("expected error when source and destination are the same")
	}
}

func TestInitCmd_MigratesFromSource(t *testing.T) {
	sourcePath := filepath.Join(t.TempDir(), "source.db")
	source := sqlite.NewStore(sourcePath)
	if err := source.Init(); err != nil {
		t.Fatalf("failed to init source: %v", err)
	}
	settings, _ := source.GetSettings()
	settings.Timezone = "UTC"
	settings.TimeFormat = constants.ClockFormat24h
	if err := source.SaveSettings(settings); err != nil {
		t.Fatalf("failed to save source settings: %v", err)
	}

	now := time.Now().UTC()
	tr := tracker.New(source)
	keepID, err := tr.AddMedicine(tracker.MedicineInput{
		Name: "Aspirin", Dosage: "100mg", Compartment: 3, Times: []string{"08:00", "20:00"},
		ActiveFrom: now.Format(constants.DateFormat), ActiveUntil: now.AddDate(0, 0, 7).Format(constants.DateFormat),
	})
	if err != nil {
		t.Fatalf("failed to add medicine: %v", err)
	}
	goneID, err := tr.AddMedicine(tracker.MedicineInput{
		Name: "Ibuprofen", Dosage: "200mg", Compartment: 4, Times: []string{"12:00"},
		ActiveFrom: now.Format(constants.DateFormat), ActiveUntil: now.AddDate(0, 0, 7).Format(constants.DateFormat),
	})
	if err != nil {
		t.Fatalf("failed to add medicine: %v", err)
	}
	doses, err := tr.Today()
	if err != nil {
		t.Fatalf("failed to derive doses: %v", err)
	}
	if _, err := tr.Settle(doses[0].ID, constants.OutcomeDispensed); err != nil {
		t.Fatalf("failed to settle dose: %v", err)
	}
	if _, err := tr.Settle(doses[1].ID, constants.OutcomeMissed); err != nil {
		t.Fatalf("failed to settle dose: %v", err)
	}
	if err := tr.RemoveMedicine(goneID); err != nil {
		t.Fatalf("failed to remove medicine: %v", err)
	}
	if err := source.Close(); err != nil {
		t.Fatalf("failed to close source: %v", err)
	}

	ctx, _, cleanup := setupTestInitDB(t)
	defer cleanup()

	if err := (&InitCmd{Source: sourcePath}).Run(ctx); err != nil {
		t.Fatalf("init with source failed: %v", err)
	}

	got, _ := ctx.Store.GetSettings()
	if got.Timezone != "UTC" || got.TimeFormat != constants.ClockFormat24h {
		t.Errorf("settings not migrated: %+v", got)
	}

	active, err := ctx.Store.GetAllMedicines(false)
	if err != nil {
		t.Fatalf("failed to list medicines: %v", err)
	}
	if len(active) != 1 || active[0].ID != keepID {
		t.Errorf("active medicines = %+v, want only %s", active, keepID)
	}
	all, _ := ctx.Store.GetAllMedicines(true)
	if len(all) != 2 {
		t.Errorf("expected removed medicine to be migrated, got %d medicines", len(all))
	}

	records, err := ctx.Store.GetHistory(models.HistoryFilter{})
	if err != nil {
		t.Fatalf("failed to get history: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("history records = %d, want 2", len(records))
	}
	// Newest first.
	if records[0].DoseID != doses[1].ID || records[0].Outcome != constants.OutcomeMissed {
		t.Errorf("unexpected newest record: %+v", records[0])
	}
	for _, d := range doses[:2] {
		migrated, err := ctx.Store.GetDose(d.ID)
		if err != nil {
			t.Fatalf("dose %s not migrated: %v", d.ID, err)
		}
		if migrated.IsUpcoming() {
			t.Errorf("dose %s should be settled after migration", d.ID)
		}
	}
}
