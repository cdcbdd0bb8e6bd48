package backup

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/pillbox/internal/models"
	"github.com/julianstephens/pillbox/internal/storage/sqlite"
)

func setupTestDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "pillbox.db")
	store := sqlite.NewStore(dbPath)
	if err := store.Init(); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	addMedicine(t, store, "med-1", "Aspirin")
	store.Close()
	return dbPath
}

func addMedicine(t *testing.T, store *sqlite.Store, id, name string) {
	t.Helper()
	err := store.AddMedicine(models.Medicine{
		ID:          id,
		Name:        name,
		Dosage:      "100mg",
		Compartment: 1,
		Times:       []string{"08:00"},
		ActiveFrom:  "2026-03-14",
		ActiveUntil: "2026-03-21",
	})
	if err != nil {
		t.Fatalf("AddMedicine() error: %v", err)
	}
}

func countMedicines(t *testing.T, dbPath string) int {
	t.Helper()
	store := sqlite.NewStore(dbPath)
	if err := store.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	defer store.Close()
	meds, err := store.GetAllMedicines(true)
	if err != nil {
		t.Fatalf("GetAllMedicines() error: %v", err)
	}
	return len(meds)
}

// steppingClock advances one minute per call.
func steppingClock() func() time.Time {
	now := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
}

func TestCreateBackup(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath, WithClock(func() time.Time { return time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC) }))

	path, err := mgr.CreateBackup()
	if err != nil {
		t.Fatalf("CreateBackup() error: %v", err)
	}
	if filepath.Base(path) != "pillbox-20260314-080000.db" {
		t.Errorf("backup name = %s", filepath.Base(path))
	}
	if filepath.Dir(path) != mgr.GetBackupDir() {
		t.Errorf("backup dir = %s, want %s", filepath.Dir(path), mgr.GetBackupDir())
	}
	if countMedicines(t, path) != 1 {
		t.Error("backup does not contain the medicine")
	}

	// Same timestamp gets a counter suffix.
	second, err := mgr.CreateBackup()
	if err != nil {
		t.Fatalf("second CreateBackup() error: %v", err)
	}
	if !strings.HasSuffix(second, "pillbox-20260314-080000-1.db") {
		t.Errorf("second backup = %s", second)
	}
}

func TestCreateBackup_MissingDatabase(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "absent.db"))
	if _, err := mgr.CreateBackup(); err == nil {
		t.Error("CreateBackup() expected error for missing database")
	}
}

func TestListBackups_OrderAndRotation(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath, WithClock(steppingClock()), WithRetention(3))

	if backups, err := mgr.ListBackups(); err != nil || len(backups) != 0 {
		t.Fatalf("ListBackups() before any backup = %v, %v", backups, err)
	}

	var created []string
	for i := 0; i < 5; i++ {
		path, err := mgr.CreateBackup()
		if err != nil {
			t.Fatalf("CreateBackup() error: %v", err)
		}
		created = append(created, path)
	}
	// Unrelated files are ignored.
	if err := os.WriteFile(filepath.Join(mgr.GetBackupDir(), "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	backups, err := mgr.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups() error: %v", err)
	}
	if len(backups) != 3 {
		t.Fatalf("ListBackups() returned %d, want 3 after rotation", len(backups))
	}
	if backups[0].Path != created[4] || backups[2].Path != created[2] {
		t.Errorf("ListBackups() order = %v", backups)
	}
	if _, err := os.Stat(created[0]); !os.IsNotExist(err) {
		t.Error("oldest backup was not rotated away")
	}
}

func TestRestoreBackup(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath, WithClock(steppingClock()))

	backupPath, err := mgr.CreateBackup()
	if err != nil {
		t.Fatalf("CreateBackup() error: %v", err)
	}

	store := sqlite.NewStore(dbPath)
	if err := store.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	addMedicine(t, store, "med-2", "Ibuprofen")
	store.Close()
	if countMedicines(t, dbPath) != 2 {
		t.Fatal("setup: expected two medicines")
	}

	safety, err := mgr.RestoreBackup(backupPath)
	if err != nil {
		t.Fatalf("RestoreBackup() error: %v", err)
	}
	if countMedicines(t, dbPath) != 1 {
		t.Error("restore did not roll back to the backup")
	}
	if safety == "" || countMedicines(t, safety) != 2 {
		t.Error("restore did not snapshot the replaced database")
	}
}

func TestRestoreBackup_RejectsForeignDatabase(t *testing.T) {
	dbPath := setupTestDB(t)
	mgr := NewManager(dbPath)

	foreign := filepath.Join(t.TempDir(), "foreign.db")
	db, err := sql.Open("sqlite", foreign)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("CREATE TABLE notes (id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := mgr.RestoreBackup(foreign); err == nil {
		t.Error("RestoreBackup() accepted a database without the pillbox schema")
	}
	if _, err := mgr.RestoreBackup(filepath.Join(t.TempDir(), "absent.db")); err == nil {
		t.Error("RestoreBackup() accepted a missing file")
	}
	if countMedicines(t, dbPath) != 1 {
		t.Error("failed restore modified the database")
	}
}
