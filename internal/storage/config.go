package storage

import (
	"net/url"
	"strings"
)

// IsPostgresConfig reports whether a --config value names a PostgreSQL database
// rather than a SQLite file path.
func IsPostgresConfig(config string) bool {
	return strings.HasPrefix(config, "postgres://") || strings.HasPrefix(config, "postgresql://")
}

// HasEmbeddedCredentials reports whether a PostgreSQL URL carries a password.
func HasEmbeddedCredentials(connStr string) bool {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return false
	}
	_, isSet := u.User.Password()
	return isSet
}
