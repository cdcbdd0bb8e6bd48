package doses

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/pillbox/internal/cli"
	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/device"
	"github.com/julianstephens/pillbox/internal/models"
	"github.com/julianstephens/pillbox/internal/storage/sqlite"
	"github.com/julianstephens/pillbox/internal/tracker"
)

func setupTestDB(t *testing.T, successRate float64) (*cli.Context, func()) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store := sqlite.NewStore(dbPath)
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	settings, _ := store.GetSettings()
	settings.Timezone = "UTC"
	if err := store.SaveSettings(settings); err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}

	sim := device.NewSimulator(device.WithSeed(1), device.WithLatency(0, 0), device.WithSuccessRate(successRate))
	ctx := cli.NewContext(store, sim, time.Second)

	origConfirm, origSpinner := confirm, withSpinner
	withSpinner = func(_ string, action func()) error {
		action()
		return nil
	}

	cleanup := func() {
		confirm, withSpinner = origConfirm, origSpinner
		ctx.Coordinator.Wait()
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}
	return ctx, cleanup
}

func addMedicine(t *testing.T, ctx *cli.Context, from time.Time, times ...string) {
	t.Helper()
	if _, err := ctx.Tracker.AddMedicine(tracker.MedicineInput{
		Name:        "Aspirin",
		Dosage:      "100mg",
		Compartment: 3,
		Times:       times,
		ActiveFrom:  from.Format(constants.DateFormat),
		ActiveUntil: from.AddDate(0, 0, 7).Format(constants.DateFormat),
	}); err != nil {
		t.Fatalf("failed to add medicine: %v", err)
	}
}

func todayDoses(t *testing.T, ctx *cli.Context) []models.Dose {
	t.Helper()
	doses, err := ctx.Tracker.Today()
	if err != nil {
		t.Fatalf("failed to get doses: %v", err)
	}
	return doses
}

func TestTodayCmd(t *testing.T) {
	ctx, cleanup := setupTestDB(t, 1)
	defer cleanup()

	if err := (&TodayCmd{}).Run(ctx); err != nil {
		t.Errorf("today with no medicines failed: %v", err)
	}

	addMedicine(t, ctx, time.Now().UTC(), "08:00", "20:00")
	if err := (&TodayCmd{}).Run(ctx); err != nil {
		t.Errorf("today failed: %v", err)
	}
	if got := len(todayDoses(t, ctx)); got != 2 {
		t.Errorf("doses = %d, want 2", got)
	}
}

func TestDispenseCmd_Next(t *testing.T) {
	ctx, cleanup := setupTestDB(t, 1)
	defer cleanup()

	addMedicine(t, ctx, time.Now().UTC(), "08:00", "20:00")

	if err := (&DispenseCmd{Next: true, Yes: true}).Run(ctx); err != nil {
		t.Fatalf("dispense --next failed: %v", err)
	}

	doses := todayDoses(t, ctx)
	if doses[0].Status != constants.DoseStatusDispensed {
		t.Errorf("first dose status = %s, want dispensed", doses[0].Status)
	}
	if !doses[1].IsUpcoming() {
		t.Errorf("second dose status = %s, want upcoming", doses[1].Status)
	}

	records, _ := ctx.Tracker.History(models.HistoryFilter{})
	if len(records) != 1 || records[0].DoseID != doses[0].ID {
		t.Errorf("history = %+v, want one record for %s", records, doses[0].ID)
	}

	snap, ok, _ := ctx.Tracker.Device()
	if !ok || !snap.IsOnline {
		t.Errorf("device snapshot = %+v (ok=%v), want online", snap, ok)
	}

	err := (&DispenseCmd{ID: doses[0].ID, Yes: true}).Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "already dispensed") {
		t.Errorf("second dispense error = %v, want already dispensed", err)
	}
}

func TestDispenseCmd_Refused(t *testing.T) {
	ctx, cleanup := setupTestDB(t, 0)
	defer cleanup()

	addMedicine(t, ctx, time.Now().UTC(), "08:00")
	dose := todayDoses(t, ctx)[0]

	if err := (&DispenseCmd{ID: dose.ID, Yes: true}).Run(ctx); err != nil {
		t.Fatalf("refusal should not be a command error: %v", err)
	}

	got, _ := ctx.Tracker.Dose(dose.ID)
	if !got.IsUpcoming() {
		t.Errorf("status = %s, want upcoming", got.Status)
	}
	if records, _ := ctx.Tracker.History(models.HistoryFilter{}); len(records) != 0 {
		t.Errorf("refusal wrote %d history records", len(records))
	}
}

func TestDispenseCmd_Cancelled(t *testing.T) {
	ctx, cleanup := setupTestDB(t, 1)
	defer cleanup()

	addMedicine(t, ctx, time.Now().UTC(), "08:00")
	dose := todayDoses(t, ctx)[0]

	asked := ""
	confirm = func(title string) (bool, error) {
		asked = title
		return false, nil
	}

	if err := (&DispenseCmd{ID: dose.ID}).Run(ctx); err != nil {
		t.Fatalf("cancelled dispense failed: %v", err)
	}
	if !strings.Contains(asked, "compartment 3") {
		t.Errorf("confirmation %q should name the compartment", asked)
	}
	got, _ := ctx.Tracker.Dose(dose.ID)
	if !got.IsUpcoming() {
		t.Errorf("status = %s, want upcoming", got.Status)
	}
}

func TestDispenseCmd_RequiresID(t *testing.T) {
	ctx, cleanup := setupTestDB(t, 1)
	defer cleanup()

	if err := (&DispenseCmd{Yes: true}).Run(ctx); err == nil {
		t.Error("expected error without an id or --next")
	}
	if err := (&DispenseCmd{Next: true, Yes: true}).Run(ctx); err == nil {
		t.Error("expected error when nothing is upcoming")
	}
}

func TestMissCmd(t *testing.T) {
	ctx, cleanup := setupTestDB(t, 1)
	defer cleanup()

	addMedicine(t, ctx, time.Now().UTC(), "08:00")
	dose := todayDoses(t, ctx)[0]

	if err := (&MissCmd{ID: dose.ID}).Run(ctx); err != nil {
		t.Fatalf("miss failed: %v", err)
	}
	got, _ := ctx.Tracker.Dose(dose.ID)
	if got.Status != constants.DoseStatusMissed {
		t.Errorf("status = %s, want missed", got.Status)
	}

	if err := (&MissCmd{ID: dose.ID}).Run(ctx); err == nil {
		t.Error("marking a settled dose missed again should fail")
	}
	if err := (&HistoryCmd{Outcome: string(constants.OutcomeMissed), Limit: 10}).Run(ctx); err != nil {
		t.Errorf("history failed: %v", err)
	}
}

func TestSweepCmd(t *testing.T) {
	ctx, cleanup := setupTestDB(t, 1)
	defer cleanup()

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	addMedicine(t, ctx, yesterday, "00:00")
	doses, err := ctx.Tracker.RefreshFor(yesterday.Format(constants.DateFormat))
	if err != nil || len(doses) != 1 {
		t.Fatalf("failed to derive yesterday: %v (%d doses)", err, len(doses))
	}

	if err := (&SweepCmd{}).Run(ctx); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	got, _ := ctx.Tracker.Dose(doses[0].ID)
	if got.Status != constants.DoseStatusMissed {
		t.Errorf("yesterday's dose status = %s, want missed", got.Status)
	}
}

func TestHistoryCmd(t *testing.T) {
	ctx, cleanup := setupTestDB(t, 1)
	defer cleanup()

	if err := (&HistoryCmd{Limit: 10}).Run(ctx); err != nil {
		t.Errorf("empty history failed: %v", err)
	}
	if err := (&HistoryCmd{Since: "not-a-date"}).Run(ctx); err == nil {
		t.Error("expected error for an invalid --since")
	}
	if err := (&HistoryCmd{Since: "yesterday", Limit: 10}).Run(ctx); err != nil {
		t.Errorf("history --since yesterday failed: %v", err)
	}
}

func TestAdherenceCmd(t *testing.T) {
	ctx, cleanup := setupTestDB(t, 1)
	defer cleanup()

	if err := (&AdherenceCmd{Days: 30}).Run(ctx); err != nil {
		t.Errorf("adherence with no history failed: %v", err)
	}

	addMedicine(t, ctx, time.Now().UTC(), "08:00", "20:00")
	for _, d := range todayDoses(t, ctx) {
		if _, err := ctx.Coordinator.MarkMissed(d.ID); err != nil {
			t.Fatalf("failed to mark missed: %v", err)
		}
	}
	if err := (&AdherenceCmd{Days: 30}).Run(ctx); err != nil {
		t.Errorf("adherence failed: %v", err)
	}
}
