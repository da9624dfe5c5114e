// internal/config/database.go
package config

import (
	"strings"
)

// DSN renders the libpq key/value connection string. Empty values are
// omitted and values with spaces or quotes are quoted. Sessions run in UTC.
func (d *DatabaseConfig) DSN() string {
	pairs := []struct{ key, value string }{
		{"host", d.Host},
		{"port", d.Port},
		{"user", d.User},
		{"password", d.Password},
		{"dbname", d.Database},
		{"sslmode", d.SSLMode},
		{"TimeZone", "UTC"},
	}

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.value == "" {
			continue
		}
		parts = append(parts, p.key+"="+quoteDSNValue(p.value))
	}
	return strings.Join(parts, " ")
}

func quoteDSNValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
