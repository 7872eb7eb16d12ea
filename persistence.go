package authkit

import (
	"embed"

	persistence "github.com/goliatone/go-persistence-bun"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// RegisterPersistenceModels registers the package models with the
// persistence client so host applications get table creation and
// fixtures without naming internal types.
func RegisterPersistenceModels() {
	persistence.RegisterModel((*User)(nil))
	persistence.RegisterModel((*RefreshSession)(nil))
	persistence.RegisterModel((*PasswordReset)(nil))
}
