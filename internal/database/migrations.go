package database

import (
	"embed"

	"slide-server/pkg/migration"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ApplyMigrations применяет встроенные миграции журнала запусков.
func ApplyMigrations(pool *pgxpool.Pool) error {
	m := migration.NewMigrator(migration.Config{
		MigrationsPath: "migrations",
		MigrationsFS:   migrationsFS,
	}, pool)
	return m.Up()
}
