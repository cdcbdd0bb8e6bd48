package system

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/pillbox/internal/cli"
	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/models"
	"github.com/julianstephens/pillbox/internal/storage"
	"github.com/julianstephens/pillbox/internal/storage/postgres"
	"github.com/julianstephens/pillbox/internal/storage/sqlite"
)

type InitCmd struct {
	Force  bool   `help:"Force reset by deleting existing database before initialization."`
	Source string `help:"Source database path or connection string to migrate data from."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	// If force flag is provided, delete existing database
	if c.Force {
		if !ctx.IsSQLite() {
			return fmt.Errorf("--force only supports SQLite databases")
		}
		dbPath := ctx.Store.GetConfigPath()
		// Don't delete if it's the source (user error protection)
		if c.Source != "" {
			absDbPath, err := filepath.Abs(dbPath)
			if err == nil {
				dbPath = absDbPath
			}
			absSource, err := filepath.Abs(c.Source)
			if err == nil && absSource == dbPath {
				return fmt.Errorf("cannot use --force when source and destination are the same: %s", dbPath)
			}
		}
		if _, err := os.Stat(dbPath); err == nil {
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			if err := os.Remove(dbPath); err != nil {
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			fmt.Printf("Deleted existing database at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	fmt.Printf("Initialized %s storage at: %s\n", constants.AppName, ctx.Store.GetConfigPath())

	if c.Source != "" {
		fmt.Printf("Migrating data from: %s\n", c.Source)
		if err := c.migrateData(ctx, c.Source); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		fmt.Println("Migration completed successfully!")
	}

	return nil
}

func openSource(sourcePath string) (storage.Provider, error) {
	if storage.IsPostgresConfig(sourcePath) {
		if valid, err := postgres.ValidateConnString(sourcePath); !valid {
			if errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return nil, fmt.Errorf("PostgreSQL source connection string contains embedded credentials. Use environment variables or .pgpass instead")
			}
			return nil, err
		}
		return postgres.New(sourcePath), nil
	}
	return sqlite.NewStore(sourcePath), nil
}

// migrateData copies settings, the medicine registry and the history ledger
// into the freshly initialized store. Settled doses are recreated through
// ApplyOutcome so each keeps exactly one ledger record; upcoming doses are
// re-derived on first use instead of copied.
func (c *InitCmd) migrateData(ctx *cli.Context, sourcePath string) error {
	sourceStore, err := openSource(sourcePath)
	if err != nil {
		return err
	}
	if err := sourceStore.Load(); err != nil {
		return fmt.Errorf("failed to load source database: %w", err)
	}
	defer sourceStore.Close()

	fmt.Println("  Migrating settings...")
	settings, err := sourceStore.GetSettings()
	if err != nil {
		return fmt.Errorf("failed to get settings from source: %w", err)
	}
	if err := ctx.Store.SaveSettings(settings); err != nil {
		return fmt.Errorf("failed to save settings to destination: %w", err)
	}

	fmt.Println("  Migrating medicines...")
	medicines, err := sourceStore.GetAllMedicines(true)
	if err != nil {
		return fmt.Errorf("failed to get medicines from source: %w", err)
	}
	for _, m := range medicines {
		if err := ctx.Store.AddMedicine(m); err != nil {
			return fmt.Errorf("failed to add medicine %s: %w", m.ID, err)
		}
		if m.IsDeleted() {
			if err := ctx.Store.DeleteMedicine(m.ID); err != nil {
				return fmt.Errorf("failed to mark medicine %s removed: %w", m.ID, err)
			}
		}
	}
	fmt.Printf("    Migrated %d medicines\n", len(medicines))

	fmt.Println("  Migrating history...")
	records, err := sourceStore.GetHistory(models.HistoryFilter{})
	if err != nil {
		return fmt.Errorf("failed to get history from source: %w", err)
	}
	// Oldest first so the destination ledger keeps the same order.
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		dose, err := sourceStore.GetDose(r.DoseID)
		if err != nil {
			return fmt.Errorf("failed to get dose %s from source: %w", r.DoseID, err)
		}
		dose.Status = constants.DoseStatusUpcoming
		if err := ctx.Store.SaveDoses([]models.Dose{dose}); err != nil {
			return fmt.Errorf("failed to save dose %s: %w", dose.ID, err)
		}
		if err := ctx.Store.ApplyOutcome(dose.ID, r); err != nil {
			return fmt.Errorf("failed to record history for dose %s: %w", dose.ID, err)
		}
	}
	fmt.Printf("    Migrated %d history records\n", len(records))

	return nil
}
