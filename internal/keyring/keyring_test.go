package keyring

import (
	"errors"
	"testing"

	gokeyring "github.com/zalando/go-keyring"
)

func TestSetGetDelete(t *testing.T) {
	gokeyring.MockInit()

	for _, c := range []Credential{Database, BridgeSecret} {
		t.Run(string(c), func(t *testing.T) {
			if err := Set(c, "value-for-"+string(c)); err != nil {
				t.Fatalf("Set() error: %v", err)
			}
			got, err := Get(c)
			if err != nil {
				t.Fatalf("Get() error: %v", err)
			}
			if got != "value-for-"+string(c) {
				t.Errorf("Get() = %q", got)
			}

			if err := Delete(c); err != nil {
				t.Fatalf("Delete() error: %v", err)
			}
			if _, err := Get(c); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
			}
			if err := Delete(c); !errors.Is(err, ErrNotFound) {
				t.Errorf("second Delete() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestCredentialsAreIndependent(t *testing.T) {
	gokeyring.MockInit()

	if err := Set(Database, "postgres://nurse@localhost/pillbox"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if _, err := Get(BridgeSecret); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(BridgeSecret) error = %v, want ErrNotFound", err)
	}
	got, err := GetConnectionString()
	if err != nil || got != "postgres://nurse@localhost/pillbox" {
		t.Errorf("GetConnectionString() = %q, %v", got, err)
	}
}

func TestSetEmpty(t *testing.T) {
	gokeyring.MockInit()
	if err := Set(Database, ""); err == nil {
		t.Error("Set() with empty value should fail")
	}
}

func TestParseCredential(t *testing.T) {
	tests := []struct {
		in      string
		want    Credential
		wantErr bool
	}{
		{"", Database, false},
		{"database", Database, false},
		{"bridge", BridgeSecret, false},
		{"bridge-secret", BridgeSecret, false},
		{"smtp", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCredential(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseCredential(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestIsAvailable(t *testing.T) {
	gokeyring.MockInit()
	if !IsAvailable() {
		t.Error("IsAvailable() = false, want true in mock mode")
	}
}
