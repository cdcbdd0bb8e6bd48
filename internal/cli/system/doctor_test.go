package system

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/pillbox/internal/backup"
	"github.com/julianstephens/pillbox/internal/cli"
	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/device"
	"github.com/julianstephens/pillbox/internal/models"
	"github.com/julianstephens/pillbox/internal/storage/sqlite"
	"github.com/julianstephens/pillbox/internal/tracker"
)

func setupTestContext(t *testing.T) (*cli.Context, func()) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	store := sqlite.NewStore(dbPath)
	if err := store.Init(); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	settings, err := store.GetSettings()
	if err != nil {
		t.Fatalf("failed to get settings: %v", err)
	}
	settings.Timezone = "UTC"
	if err := store.SaveSettings(settings); err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}

	ctx := cli.NewContext(store, device.NewSimulator(device.WithSeed(1), device.WithLatency(0, 0)), time.Second)
	ctx.ConfigDir = tempDir

	cleanup := func() {
		ctx.Coordinator.Wait()
		store.Close()
	}
	return ctx, cleanup
}

// addAspirin registers a medicine active for a week starting today (UTC).
func addAspirin(t *testing.T, ctx *cli.Context, times ...string) string {
	t.Helper()
	if len(times) == 0 {
		times = []string{"08:00", "20:00"}
	}
	today := time.Now().UTC()
	id, err := ctx.Tracker.AddMedicine(tracker.MedicineInput{
		Name:        "Aspirin",
		Dosage:      "100mg",
		Compartment: 3,
		Times:       times,
		ActiveFrom:  today.Format(constants.DateFormat),
		ActiveUntil: today.AddDate(0, 0, 7).Format(constants.DateFormat),
	})
	if err != nil {
		t.Fatalf("failed to add medicine: %v", err)
	}
	return id
}

func TestDoctorCmd_HealthyDB(t *testing.T) {
	ctx, cleanup := setupTestContext(t)
	defer cleanup()

	addAspirin(t, ctx)

	cmd := &DoctorCmd{}
	// Missing backups and an uncontacted device are warnings only.
	if err := cmd.Run(ctx); err != nil {
		t.Errorf("doctor command failed on healthy database: %v", err)
	}
}

func TestDoctorCmd_WithBackups(t *testing.T) {
	ctx, cleanup := setupTestContext(t)
	defer cleanup()

	mgr := backup.NewManager(ctx.Store.GetConfigPath())
	if _, err := mgr.CreateBackup(); err != nil {
		t.Fatalf("failed to create backup: %v", err)
	}

	if err := checkBackupsPresent(ctx); err != nil {
		t.Errorf("checkBackupsPresent failed with a backup present: %v", err)
	}
	cmd := &DoctorCmd{}
	if err := cmd.Run(ctx); err != nil {
		t.Errorf("doctor command failed with backups present: %v", err)
	}
}

func TestDoctorCmd_BrokenSchema(t *testing.T) {
	ctx, cleanup := setupTestContext(t)
	defer cleanup()

	db := ctx.Store.(*sqlite.Store).GetDB()
	if _, err := db.Exec("DELETE FROM schema_version"); err != nil {
		t.Fatalf("failed to clear schema version: %v", err)
	}
	if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", 999); err != nil {
		t.Fatalf("failed to set schema version: %v", err)
	}

	if err := checkSchemaVersion(ctx); err == nil {
		t.Error("checkSchemaVersion should fail for a newer schema")
	}
	cmd := &DoctorCmd{}
	if err := cmd.Run(ctx); err == nil {
		t.Error("doctor command should fail with a newer schema")
	}
}

func TestCheckMigrationsComplete_Incomplete(t *testing.T) {
	ctx, cleanup := setupTestContext(t)
	defer cleanup()

	db := ctx.Store.(*sqlite.Store).GetDB()
	if _, err := db.Exec("DELETE FROM schema_version"); err != nil {
		t.Fatalf("failed to clear schema version: %v", err)
	}

	if err := checkMigrationsComplete(ctx); err == nil {
		t.Error("checkMigrationsComplete should fail with incomplete migrations")
	}
}

func TestCheckLedgerConsistency(t *testing.T) {
	ctx, cleanup := setupTestContext(t)
	defer cleanup()

	addAspirin(t, ctx)
	doses, err := ctx.Tracker.Today()
	if err != nil {
		t.Fatalf("failed to get doses: %v", err)
	}
	if _, err := ctx.Coordinator.MarkMissed(doses[0].ID); err != nil {
		t.Fatalf("failed to mark missed: %v", err)
	}
	if err := checkLedgerConsistency(ctx); err != nil {
		t.Errorf("ledger should be consistent: %v", err)
	}

	// A status change without a ledger record breaks the invariant.
	db := ctx.Store.(*sqlite.Store).GetDB()
	if _, err := db.Exec("UPDATE doses SET status = 'dispensed' WHERE id = ?", doses[1].ID); err != nil {
		t.Fatalf("failed to corrupt dose: %v", err)
	}
	if err := checkLedgerConsistency(ctx); err == nil {
		t.Error("checkLedgerConsistency should flag a settled dose without history")
	}
}

func TestCheckDateFormats_Invalid(t *testing.T) {
	ctx, cleanup := setupTestContext(t)
	defer cleanup()

	addAspirin(t, ctx)
	if err := checkDateFormats(ctx); err != nil {
		t.Fatalf("fresh doses should have valid dates: %v", err)
	}

	db := ctx.Store.(*sqlite.Store).GetDB()
	if _, err := db.Exec("UPDATE doses SET for_date = '14/03/2026'"); err != nil {
		t.Fatalf("failed to corrupt dose dates: %v", err)
	}
	if err := checkDateFormats(ctx); err == nil {
		t.Error("checkDateFormats should flag malformed dates")
	}
}

func TestCheckValidation_InvalidTimezone(t *testing.T) {
	ctx, cleanup := setupTestContext(t)
	defer cleanup()

	settings, _ := ctx.Store.GetSettings()
	settings.Timezone = "Mars/Olympus_Mons"
	if err := ctx.Store.SaveSettings(settings); err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}
	if err := checkValidation(ctx); err == nil {
		t.Error("checkValidation should reject an unknown timezone")
	}
}

func TestCheckDevice(t *testing.T) {
	ctx, cleanup := setupTestContext(t)
	defer cleanup()

	if err := checkDevice(ctx); err == nil {
		t.Error("checkDevice should warn when the device was never contacted")
	}

	if _, err := ctx.Tracker.UpdateDevice(func(s models.DeviceSnapshot) models.DeviceSnapshot {
		s.IsOnline = true
		s.BatteryPercent = 90
		s.LastSyncedAt = time.Now()
		return s
	}); err != nil {
		t.Fatalf("failed to save snapshot: %v", err)
	}
	if err := checkDevice(ctx); err != nil {
		t.Errorf("healthy device flagged: %v", err)
	}

	if _, err := ctx.Tracker.UpdateDevice(func(s models.DeviceSnapshot) models.DeviceSnapshot {
		s.BatteryPercent = 5
		return s
	}); err != nil {
		t.Fatalf("failed to save snapshot: %v", err)
	}
	if err := checkDevice(ctx); err == nil {
		t.Error("checkDevice should warn on low battery")
	}
}

func TestCheckEmergencyContact(t *testing.T) {
	ctx, cleanup := setupTestContext(t)
	defer cleanup()

	if err := checkEmergencyContact(ctx); err == nil {
		t.Error("checkEmergencyContact should warn when no contact is saved")
	}

	settings, _ := ctx.Store.GetSettings()
	settings.EmergencyContact = models.EmergencyContact{Name: "Dana Reyes", Phone: "555-0199"}
	if err := ctx.Store.SaveSettings(settings); err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}
	if err := checkEmergencyContact(ctx); err != nil {
		t.Errorf("saved contact flagged: %v", err)
	}
	if err := checkValidation(ctx); err != nil {
		t.Errorf("valid contact failed validation: %v", err)
	}

	// Written around the tracker, so only doctor catches it.
	settings.EmergencyContact.Email = "dana@"
	if err := ctx.Store.SaveSettings(settings); err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}
	if err := checkValidation(ctx); err == nil {
		t.Error("checkValidation should reject a malformed contact email")
	}
}

func TestCheckClockTimezone(t *testing.T) {
	if err := checkClockTimezone(); err != nil {
		t.Errorf("clock/timezone check failed: %v", err)
	}
}
