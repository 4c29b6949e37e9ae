package store

import "strings"

// DetectDSNType reports which backend a DSN belongs to: "postgres" for
// connection URLs / key=value strings, "sqlite" for plain file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
