// Package migrations embeds the SQL schema migrations, one directory per dialect.
package migrations

import "embed"

// FS holds the embedded SQL migration files.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

// Dir returns the directory inside FS holding the migrations of driver.
func Dir(driver string) string {
	if driver == "postgres" {
		return "postgres"
	}
	return "sqlite"
}
