package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/pillbox/internal/constants"
)

// Credential names one secret pillbox keeps in the OS keyring.
type Credential string

const (
	// Database is the PostgreSQL connection string used when --config is unset.
	Database Credential = constants.DefaultKeyringUser
	// BridgeSecret is the shared secret for a dispenser bridge whose lockfile
	// does not carry one.
	BridgeSecret Credential = "bridge-secret"
)

var (
	// ErrNotFound is returned when no credentials are found in the keyring
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// ParseCredential maps a CLI name to a Credential.
func ParseCredential(name string) (Credential, error) {
	switch name {
	case "", "database", string(Database):
		return Database, nil
	case string(BridgeSecret), "bridge":
		return BridgeSecret, nil
	default:
		return "", fmt.Errorf("unknown credential %q (expected database or bridge)", name)
	}
}

// Get retrieves a credential. Returns ErrNotFound if nothing is stored.
func Get(c Credential) (string, error) {
	value, err := keyring.Get(constants.AppName, string(c))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return value, nil
}

// Set stores a credential, replacing any previous value.
func Set(c Credential, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", c)
	}
	if err := keyring.Set(constants.AppName, string(c), value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", c, err)
	}
	return nil
}

// Delete removes a credential.
func Delete(c Credential) error {
	if err := keyring.Delete(constants.AppName, string(c)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", c, err)
	}
	return nil
}

// GetConnectionString retrieves the database connection string.
func GetConnectionString() (string, error) {
	return Get(Database)
}

// IsAvailable checks if the OS keyring is available on the current system.
// A not-found result still means the keyring answered.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
