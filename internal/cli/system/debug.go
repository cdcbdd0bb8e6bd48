package system

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/julianstephens/pillbox/internal/cli"
	"github.com/julianstephens/pillbox/internal/storage"
)

type DebugCmd struct {
	DBPath       *DebugDBPathCmd       `cmd:"" help:"Show database path."`
	DumpDay      *DebugDumpDayCmd      `cmd:"" help:"Dump stored doses for a day as JSON."`
	DumpDose     *DebugDumpDoseCmd     `cmd:"" help:"Dump a dose as JSON."`
	DumpMedicine *DebugDumpMedicineCmd `cmd:"" help:"Dump a medicine as JSON."`
	DumpSettings *DebugDumpSettingsCmd `cmd:"" help:"Dump settings data as JSON."`
	DumpDevice   *DebugDumpDeviceCmd   `cmd:"" help:"Dump the last device snapshot as JSON."`
}

func printJSON(v interface{}) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(jsonBytes))
	return nil
}

type DebugDBPathCmd struct{}

func (cmd *DebugDBPathCmd) Run(ctx *cli.Context) error {
	return printJSON(map[string]string{
		"path": ctx.Store.GetConfigPath(),
	})
}

type DebugDumpDayCmd struct {
	Date string `arg:"" optional:"" help:"Date to dump (YYYY-MM-DD, 'today' or 'yesterday')." default:"today"`
}

// Run prints what is stored for the day without deriving missing doses.
func (cmd *DebugDumpDayCmd) Run(ctx *cli.Context) error {
	date, err := ctx.ParseDate(cmd.Date)
	if err != nil {
		return err
	}
	doses, err := ctx.Tracker.DosesFor(date)
	if err != nil {
		return fmt.Errorf("failed to get doses: %w", err)
	}
	if len(doses) == 0 {
		return fmt.Errorf("no doses stored for date: %s", date)
	}
	return printJSON(doses)
}

type DebugDumpDoseCmd struct {
	ID string `arg:"" help:"Dose id (<medicine-id>/<YYYY-MM-DD>/<HH:MM>)."`
}

func (cmd *DebugDumpDoseCmd) Run(ctx *cli.Context) error {
	dose, err := ctx.Tracker.Dose(cmd.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("dose not found: %s", cmd.ID)
		}
		return fmt.Errorf("failed to get dose: %w", err)
	}
	return printJSON(dose)
}

type DebugDumpMedicineCmd struct {
	ID string `arg:"" help:"ID of the medicine to dump."`
}

func (cmd *DebugDumpMedicineCmd) Run(ctx *cli.Context) error {
	medicine, err := ctx.Store.GetMedicine(cmd.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("medicine not found: %s", cmd.ID)
		}
		return fmt.Errorf("failed to get medicine: %w", err)
	}
	return printJSON(medicine)
}

type DebugDumpSettingsCmd struct{}

func (cmd *DebugDumpSettingsCmd) Run(ctx *cli.Context) error {
	settings, err := ctx.Store.GetSettings()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	return printJSON(settings)
}

type DebugDumpDeviceCmd struct{}

func (cmd *DebugDumpDeviceCmd) Run(ctx *cli.Context) error {
	snap, ok, err := ctx.Tracker.Device()
	if err != nil {
		return fmt.Errorf("failed to get device snapshot: %w", err)
	}
	if !ok {
		return fmt.Errorf("device has never been contacted")
	}
	return printJSON(snap)
}
