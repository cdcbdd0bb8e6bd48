package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	_ "time/tzdata"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/pillbox/internal/cli"
	"github.com/julianstephens/pillbox/internal/cli/backups"
	"github.com/julianstephens/pillbox/internal/cli/dispenser"
	"github.com/julianstephens/pillbox/internal/cli/doses"
	"github.com/julianstephens/pillbox/internal/cli/medicines"
	"github.com/julianstephens/pillbox/internal/cli/settings"
	"github.com/julianstephens/pillbox/internal/cli/system"
	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/device"
	"github.com/julianstephens/pillbox/internal/errors"
	"github.com/julianstephens/pillbox/internal/keyring"
	"github.com/julianstephens/pillbox/internal/logger"
	"github.com/julianstephens/pillbox/internal/storage"
	"github.com/julianstephens/pillbox/internal/storage/postgres"
	"github.com/julianstephens/pillbox/internal/storage/sqlite"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Database file path or PostgreSQL connection string. For PostgreSQL, credentials must NOT be embedded in the connection string. Use the OS keyring, PILLBOX_DB_CONNECTION or .pgpass instead." env:"PILLBOX_CONFIG"`
	Backend string `name:"device" help:"Dispenser backend: simulator or bridge." enum:"simulator,bridge" default:"simulator" env:"PILLBOX_DEVICE"`
	Debug   bool   `help:"Write debug logs to stderr."`

	Init      system.InitCmd       `cmd:"" help:"Initialize pillbox storage."`
	Migrate   system.MigrateCmd    `cmd:"" help:"Run database migrations."`
	Doctor    system.DoctorCmd     `cmd:"" help:"Run health checks and diagnostics."`
	Tui       system.TuiCmd        `cmd:"" help:"Launch the interactive dashboard." default:"1"`
	Today     doses.TodayCmd       `cmd:"" help:"Show today's doses."`
	Dispense  doses.DispenseCmd    `cmd:"" help:"Dispense a dose."`
	Miss      doses.MissCmd        `cmd:"" help:"Mark a dose as missed."`
	Sweep     doses.SweepCmd       `cmd:"" help:"Mark overdue doses as missed."`
	History   doses.HistoryCmd     `cmd:"" help:"Show the dose history."`
	Adherence doses.AdherenceCmd   `cmd:"" help:"Summarize missed doses per medicine."`
	Validate  system.ValidateCmd   `cmd:"" help:"Check medicines for conflicts."`
	Watch     system.WatchCmd      `cmd:"" help:"Run the background daemon: device polling, daily rollover and metrics."`
	DebugCmd  system.DebugCmd      `cmd:"" name:"debug" help:"Debug commands for troubleshooting."`
	Settings  settings.SettingsCmd `cmd:"" help:"Manage application settings."`
	Emergency settings.EmergencyCmd `cmd:"" help:"Show the emergency contact."`
	Medicine struct {
		Add     medicines.AddCmd     `cmd:"" help:"Register a medicine."`
		List    medicines.ListCmd    `cmd:"" help:"List medicines." default:"1"`
		Remove  medicines.RemoveCmd  `cmd:"" help:"Remove a medicine."`
		Restore medicines.RestoreCmd `cmd:"" help:"Restore a removed medicine."`
		Import  medicines.ImportCmd  `cmd:"" help:"Import medicines from a YAML regimen."`
	} `cmd:"" help:"Manage the medicine registry."`
	Device struct {
		Status dispenser.StatusCmd `cmd:"" help:"Check the dispenser status." default:"1"`
	} `cmd:"" help:"Inspect the dispenser."`
	Backup struct {
		Create  backups.BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
		List    backups.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore backups.BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
	} `cmd:"" help:"Manage database backups."`
	Keyring struct {
		Set    system.KeyringSetCmd    `cmd:"" help:"Store a credential in the OS keyring."`
		Get    system.KeyringGetCmd    `cmd:"" help:"Show a stored credential (masked)."`
		Delete system.KeyringDeleteCmd `cmd:"" help:"Remove a credential from the OS keyring."`
		Status system.KeyringStatusCmd `cmd:"" help:"Show keyring availability." default:"1"`
	} `cmd:"" help:"Manage credentials in the OS keyring."`
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// openStore picks the storage backend. An explicit --config wins, then a
// connection string from the environment or keyring, then the default SQLite
// file.
func openStore(config string) (storage.Provider, string, error) {
	if config == "" {
		if conn := os.Getenv("PILLBOX_DB_CONNECTION"); conn != "" {
			return postgresStore(conn)
		}
		if conn, err := keyring.GetConnectionString(); err == nil && conn != "" {
			return postgresStore(conn)
		}
		config = constants.DefaultConfigPath
	} else if storage.IsPostgresConfig(config) {
		if storage.HasEmbeddedCredentials(config) {
			return nil, "", errors.WithHint(
				fmt.Errorf("PostgreSQL connection strings with embedded credentials are not allowed in --config"),
				fmt.Sprintf("store it with '%s keyring set', export PILLBOX_DB_CONNECTION, or use a .pgpass file", constants.AppName),
			)
		}
		return postgresStore(config)
	}

	path, err := expandHome(config)
	if err != nil {
		return nil, "", err
	}
	return sqlite.NewStore(path), filepath.Dir(path), nil
}

func postgresStore(conn string) (storage.Provider, string, error) {
	if valid, err := postgres.ValidateConnString(conn); !valid {
		return nil, "", fmt.Errorf("invalid PostgreSQL connection string: %w", err)
	}
	dir, err := device.LockfileDir()
	if err != nil {
		return nil, "", err
	}
	return postgres.New(conn), dir, nil
}

func kongVars() kong.Vars {
	vars := kong.Vars{"version": constants.Version}
	for k, v := range system.WatchVars() {
		vars[k] = v
	}
	return vars
}

// run executes the parsed command against store and closes it on every
// return path, including command errors.
func run(kctx *kong.Context, store storage.Provider, configDir, backend string) (err error) {
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("failed to close storage", "error", cerr)
		}
	}()

	// init creates the store and keyring commands never touch it.
	command := kctx.Command()
	timeout := constants.DefaultDeviceTimeout
	if !strings.HasPrefix(command, "init") && !strings.HasPrefix(command, "keyring") {
		if err := store.Load(); err != nil {
			return err
		}
		timeout = cli.DeviceTimeout(store)
	}

	gateway, err := cli.NewGateway(backend)
	if err != nil {
		return err
	}

	appCtx := cli.NewContext(store, gateway, timeout)
	appCtx.ConfigDir = configDir

	err = kctx.Run(appCtx)
	appCtx.Coordinator.Wait()
	return err
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Medication dose tracker for a smart pill dispenser"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kongVars(),
	)

	store, configDir, err := openStore(CLI.Config)
	if err != nil {
		errors.Fatal(err)
	}

	if err := logger.Init(logger.Config{
		Debug:     CLI.Debug,
		ConfigDir: configDir,
		Console:   strings.HasPrefix(ctx.Command(), "watch"),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}

	errors.Fatal(run(ctx, store, configDir, CLI.Backend))
}
