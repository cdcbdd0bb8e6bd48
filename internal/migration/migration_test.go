package migration

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestApplyMigrations(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"001_init.sql":   {Data: []byte("CREATE TABLE a (id TEXT PRIMARY KEY);")},
		"002_second.sql": {Data: []byte("CREATE TABLE b (id TEXT PRIMARY KEY);")},
		"README.md":      {Data: []byte("ignored")},
	}

	runner, err := NewRunner(db, fsys, DriverSQLite)
	if err != nil {
		t.Fatalf("NewRunner() error: %v", err)
	}

	var logs []string
	applied, err := runner.ApplyMigrations(func(s string) { logs = append(logs, s) })
	if err != nil {
		t.Fatalf("ApplyMigrations() error: %v", err)
	}
	if applied != 2 {
		t.Errorf("ApplyMigrations() applied %d, want 2", applied)
	}
	if len(logs) == 0 {
		t.Error("ApplyMigrations() produced no log output")
	}

	version, err := runner.GetCurrentVersion()
	if err != nil {
		t.Fatalf("GetCurrentVersion() error: %v", err)
	}
	if version != 2 {
		t.Errorf("GetCurrentVersion() = %d, want 2", version)
	}

	// Second run is a no-op.
	applied, err = runner.ApplyMigrations(nil)
	if err != nil {
		t.Fatalf("second ApplyMigrations() error: %v", err)
	}
	if applied != 0 {
		t.Errorf("second ApplyMigrations() applied %d, want 0", applied)
	}
	if err := runner.ValidateVersion(); err != nil {
		t.Errorf("ValidateVersion() error: %v", err)
	}
}

func TestApplyMigrations_FailureRollsBack(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"001_init.sql":   {Data: []byte("CREATE TABLE a (id TEXT PRIMARY KEY);")},
		"002_broken.sql": {Data: []byte("CREATE TABLE nope (")},
	}
	runner, err := NewRunner(db, fsys, DriverSQLite)
	if err != nil {
		t.Fatalf("NewRunner() error: %v", err)
	}

	applied, err := runner.ApplyMigrations(nil)
	if err == nil {
		t.Fatal("ApplyMigrations() expected error for broken migration")
	}
	if applied != 1 {
		t.Errorf("ApplyMigrations() applied %d, want 1", applied)
	}
	version, _ := runner.GetCurrentVersion()
	if version != 1 {
		t.Errorf("version after failure = %d, want 1", version)
	}
}

func TestReadMigrationFiles_Errors(t *testing.T) {
	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr string
	}{
		{
			name:    "missing underscore",
			fsys:    fstest.MapFS{"001.sql": {Data: []byte("")}},
			wantErr: "invalid migration filename",
		},
		{
			name:    "non numeric version",
			fsys:    fstest.MapFS{"abc_init.sql": {Data: []byte("")}},
			wantErr: "invalid version number",
		},
		{
			name:    "zero version",
			fsys:    fstest.MapFS{"000_init.sql": {Data: []byte("")}},
			wantErr: "version must be at least 1",
		},
		{
			name: "duplicate version",
			fsys: fstest.MapFS{
				"001_a.sql":  {Data: []byte("")},
				"0001_b.sql": {Data: []byte("")},
			},
			wantErr: "duplicate migration version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, err := NewRunner(openTestDB(t), tt.fsys, DriverSQLite)
			if err != nil {
				t.Fatalf("NewRunner() error: %v", err)
			}
			_, err = runner.ReadMigrationFiles()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ReadMigrationFiles() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateVersion_NewerDatabase(t *testing.T) {
	db := openTestDB(t)
	runner, err := NewRunner(db, fstest.MapFS{"001_init.sql": {Data: []byte("SELECT 1;")}}, DriverSQLite)
	if err != nil {
		t.Fatalf("NewRunner() error: %v", err)
	}
	if err := runner.SetVersion(5); err != nil {
		t.Fatalf("SetVersion() error: %v", err)
	}
	if err := runner.ValidateVersion(); err == nil || !strings.Contains(err.Error(), "newer") {
		t.Errorf("ValidateVersion() error = %v, want newer-version error", err)
	}
}

func TestNewRunner_RejectsUnknownDriver(t *testing.T) {
	if _, err := NewRunner(openTestDB(t), fstest.MapFS{}, Driver("mysql")); err == nil {
		t.Error("NewRunner() expected error for unsupported driver")
	}
}
