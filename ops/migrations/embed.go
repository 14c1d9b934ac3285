// Package migrations embeds the schema and seed SQL applied by cmd/migrate.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed sql/*.sql
var schema embed.FS

//go:embed seeds/*.sql
var seeds embed.FS

// Schema returns the up/down migration files.
func Schema() fs.FS {
	sub, _ := fs.Sub(schema, "sql")
	return sub
}

// Seeds returns the seed files.
func Seeds() fs.FS {
	sub, _ := fs.Sub(seeds, "seeds")
	return sub
}
