package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/pillbox/internal/constants"
	"github.com/julianstephens/pillbox/internal/storage/sqlite"
)

type closeCountingStore struct {
	*sqlite.Store
	closes int
}

func (s *closeCountingStore) Close() error {
	s.closes++
	return s.Store.Close()
}

func newTestStore(t *testing.T) (*closeCountingStore, string) {
	t.Helper()
	dir := t.TempDir()
	base := sqlite.NewStore(filepath.Join(dir, "pillbox.db"))
	if err := base.Init(); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	t.Cleanup(func() { base.Close() })
	return &closeCountingStore{Store: base}, dir
}

func parse(t *testing.T, args ...string) *kong.Context {
	t.Helper()
	parser, err := kong.New(&CLI, kong.Name(constants.AppName), kongVars())
	if err != nil {
		t.Fatalf("kong.New() error: %v", err)
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		t.Fatalf("Parse(%v) error: %v", args, err)
	}
	return kctx
}

func TestRun_ClosesStoreOnCommandError(t *testing.T) {
	store, dir := newTestStore(t)

	err := run(parse(t, "dispense"), store, dir, "simulator")
	if err == nil || !strings.Contains(err.Error(), "--next") {
		t.Fatalf("run() error = %v, want missing dose id", err)
	}
	if store.closes != 1 {
		t.Errorf("Close() called %d times, want 1", store.closes)
	}
	if store.GetDB() != nil {
		t.Error("database still open after a failed command")
	}
}

func TestRun_ClosesStoreOnSuccess(t *testing.T) {
	store, dir := newTestStore(t)

	if err := run(parse(t, "today"), store, dir, "simulator"); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if store.closes != 1 {
		t.Errorf("Close() called %d times, want 1", store.closes)
	}
}

func TestRun_UnknownBackend(t *testing.T) {
	store, dir := newTestStore(t)

	if err := run(parse(t, "today"), store, dir, "carrier-pigeon"); err == nil {
		t.Fatal("run() should reject an unknown device backend")
	}
	if store.closes != 1 {
		t.Errorf("Close() called %d times, want 1", store.closes)
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/pat")

	tests := map[string]string{
		"~":                    "/home/pat",
		"~/pillbox/pillbox.db": "/home/pat/pillbox/pillbox.db",
		"/var/lib/pillbox.db":  "/var/lib/pillbox.db",
		"postgres://db/pills":  "postgres://db/pills",
	}
	for in, want := range tests {
		got, err := expandHome(in)
		if err != nil {
			t.Fatalf("expandHome(%q) error: %v", in, err)
		}
		if got != want {
			t.Errorf("expandHome(%q) = %q, want %q", in, got, want)
		}
	}
}
