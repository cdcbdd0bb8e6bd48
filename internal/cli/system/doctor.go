package system

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/julianstephens/pillbox/internal/backup"
	"github.com/julianstephens/pillbox/internal/cli"
	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/storage/sqlite"
	"github.com/julianstephens/pillbox/internal/utils"
)

// schemaVersioner is implemented by the SQLite and PostgreSQL stores.
type schemaVersioner interface {
	SchemaVersion() (current, latest int, err error)
}

type DoctorCmd struct{}

type check struct {
	name    string
	run     func(*cli.Context) error
	needsDB bool
	warning bool // failures are reported but do not fail the command
}

func doctorChecks() []check {
	return []check{
		{name: "Schema version", run: checkSchemaVersion, needsDB: true},
		{name: "Migrations complete", run: checkMigrationsComplete, needsDB: true},
		{name: "Backups present", run: checkBackupsPresent, warning: true},
		{name: "Data validation", run: checkValidation, needsDB: true},
		{name: "Clock/timezone", run: func(ctx *cli.Context) error { return checkClockTimezone() }},
		{name: "Ledger consistency", run: checkLedgerConsistency, needsDB: true},
		{name: "Date formats", run: checkDateFormats, needsDB: true},
		{name: "Device", run: checkDevice, needsDB: true, warning: true},
		{name: "Emergency contact", run: checkEmergencyContact, needsDB: true, warning: true},
	}
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	hasError := false
	dbReachable := false

	if err := checkDBReachable(ctx); err != nil {
		fmt.Printf("❌ Database reachable: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
	} else {
		fmt.Printf("✓ Database reachable: OK\n")
		dbReachable = true
	}

	for _, c := range doctorChecks() {
		if c.needsDB && !dbReachable {
			fmt.Printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}
		err := c.run(ctx)
		switch {
		case err == nil:
			fmt.Printf("✓ %s: OK\n", c.name)
		case c.warning:
			fmt.Printf("⚠ %s: WARNING\n", c.name)
			fmt.Printf("   %v\n", err)
		default:
			fmt.Printf("❌ %s: FAIL\n", c.name)
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		}
	}

	fmt.Println()
	if hasError {
		return fmt.Errorf("diagnostics found problems")
	}
	fmt.Println("All checks passed.")
	return nil
}

func sqliteDB(ctx *cli.Context) *sql.DB {
	if s, ok := ctx.Store.(*sqlite.Store); ok {
		return s.GetDB()
	}
	return nil
}

func checkDBReachable(ctx *cli.Context) error {
	if _, err := ctx.Store.GetSettings(); err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	if db := sqliteDB(ctx); db != nil {
		var result int
		if err := db.QueryRow("SELECT 1").Scan(&result); err != nil {
			return fmt.Errorf("failed to query database: %w", err)
		}
	}
	return nil
}

func schemaVersions(ctx *cli.Context) (int, int, bool, error) {
	v, ok := ctx.Store.(schemaVersioner)
	if !ok {
		return 0, 0, false, nil
	}
	current, latest, err := v.SchemaVersion()
	if err != nil {
		return 0, 0, true, fmt.Errorf("failed to get schema version: %w", err)
	}
	return current, latest, true, nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	current, latest, ok, err := schemaVersions(ctx)
	if !ok || err != nil {
		return err
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest)
	}
	return nil
}

func checkMigrationsComplete(ctx *cli.Context) error {
	current, latest, ok, err := schemaVersions(ctx)
	if !ok || err != nil {
		return err
	}
	if current < latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d", current, latest)
	}
	return nil
}

func checkBackupsPresent(ctx *cli.Context) error {
	if !ctx.IsSQLite() {
		return nil
	}
	mgr := backup.NewManager(ctx.Store.GetConfigPath())
	backups, err := mgr.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found - consider creating one with '%s backup create'", constants.AppName)
	}
	return nil
}

func checkValidation(ctx *cli.Context) error {
	settings, err := ctx.Store.GetSettings()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	if !utils.ValidateTimezone(settings.Timezone) {
		return fmt.Errorf("invalid timezone setting: %q", settings.Timezone)
	}
	if settings.TimeFormat != constants.ClockFormat12h && settings.TimeFormat != constants.ClockFormat24h {
		return fmt.Errorf("invalid time format setting: %q", settings.TimeFormat)
	}
	if err := settings.Profile.Validate(); err != nil {
		return err
	}
	if err := settings.EmergencyContact.Validate(); err != nil {
		return err
	}

	medicines, err := ctx.Store.GetAllMedicines(true)
	if err != nil {
		return fmt.Errorf("failed to get medicines: %w", err)
	}
	ids := make(map[string]bool)
	for _, m := range medicines {
		if ids[m.ID] {
			return fmt.Errorf("duplicate medicine ID found: %s", m.ID)
		}
		ids[m.ID] = true
		if err := m.Validate(); err != nil {
			return fmt.Errorf("medicine %s (%s): %w", m.Name, m.ID, err)
		}
	}
	return nil
}

func checkClockTimezone() error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	return nil
}

// checkLedgerConsistency verifies that every settled dose has exactly one
// history record and that no upcoming dose has one.
func checkLedgerConsistency(ctx *cli.Context) error {
	db := sqliteDB(ctx)
	if db == nil {
		return nil
	}

	var count int
	if err := db.QueryRow(`
		SELECT COUNT(*)
		FROM doses d
		LEFT JOIN history h ON h.dose_id = d.id
		WHERE d.status != 'upcoming' AND h.id IS NULL
	`).Scan(&count); err != nil {
		return fmt.Errorf("failed to check settled doses: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("found %d settled doses without a history record", count)
	}

	if err := db.QueryRow(`
		SELECT COUNT(*)
		FROM history h
		LEFT JOIN doses d ON d.id = h.dose_id
		WHERE d.id IS NULL OR d.status = 'upcoming' OR d.status != h.outcome
	`).Scan(&count); err != nil {
		return fmt.Errorf("failed to check history records: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("found %d history records that do not match their dose", count)
	}
	return nil
}

func checkDateFormats(ctx *cli.Context) error {
	db := sqliteDB(ctx)
	if db == nil {
		return nil
	}

	queries := map[string]string{
		"doses":   `SELECT COUNT(*) FROM doses WHERE for_date NOT GLOB '[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9]' OR scheduled_time NOT GLOB '[0-2][0-9]:[0-5][0-9]'`,
		"history": `SELECT COUNT(*) FROM history WHERE date NOT GLOB '[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9]' OR time NOT GLOB '[0-2][0-9]:[0-5][0-9]'`,
	}
	for table, q := range queries {
		var invalid int
		if err := db.QueryRow(q).Scan(&invalid); err != nil {
			return fmt.Errorf("failed to check %s dates: %w", table, err)
		}
		if invalid > 0 {
			return fmt.Errorf("found %d %s rows with invalid date or time format", invalid, table)
		}
	}
	return nil
}

func checkDevice(ctx *cli.Context) error {
	snap, ok, err := ctx.Tracker.Device()
	if err != nil {
		return fmt.Errorf("failed to read device snapshot: %w", err)
	}
	if !ok {
		return fmt.Errorf("device has never been contacted - run '%s device status'", constants.AppName)
	}
	if !snap.IsOnline {
		return fmt.Errorf("device was offline at last contact")
	}
	settings, err := ctx.Store.GetSettings()
	if err == nil && snap.BatteryPercent <= settings.LowBatteryPercent {
		return fmt.Errorf("device battery low: %d%%", snap.BatteryPercent)
	}
	return nil
}

func checkEmergencyContact(ctx *cli.Context) error {
	settings, err := ctx.Store.GetSettings()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	if !settings.EmergencyContact.Callable() {
		return fmt.Errorf("no emergency contact phone saved - run '%s settings --emergency-phone NUMBER'", constants.AppName)
	}
	return nil
}
