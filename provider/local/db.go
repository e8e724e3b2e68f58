package local

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	defaultDSN     = "file:authcard.db?cache=shared"
	migrationsRoot = "data/sql/migrations"
	pingTimeout    = 5 * time.Second
	otelIdentifier = "authcard-local"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the SQL migrations of the local backend.
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

type dbConfig struct {
	dsn string
}

func (c dbConfig) GetDebug() bool                { return false }
func (c dbConfig) GetDriver() string             { return sqliteshim.ShimName }
func (c dbConfig) GetServer() string             { return c.dsn }
func (c dbConfig) GetDSN() string                { return c.dsn }
func (c dbConfig) GetPingTimeout() time.Duration { return pingTimeout }
func (c dbConfig) GetOtelIdentifier() string     { return otelIdentifier }

// Open connects to the SQLite database at dsn and registers the local
// backend models and migrations. Call Migrate before serving.
func Open(dsn string) (*persistence.Client, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("local: open sqlite: %w", err)
	}
	// sqlite allows a single writer
	sqldb.SetMaxOpenConns(1)

	persistence.RegisterModel((*Account)(nil))
	persistence.RegisterModel((*Profile)(nil))

	client, err := persistence.New(dbConfig{dsn: dsn}, sqldb, sqlitedialect.New())
	if err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("local: persistence client: %w", err)
	}

	migrations, err := fs.Sub(GetMigrationsFS(), migrationsRoot)
	if err != nil {
		sqldb.Close()
		return nil, err
	}
	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel(migrationsRoot),
		persistence.WithValidationTargets("sqlite"),
	)
	return client, nil
}

// Migrate applies pending migrations. Applied ones are skipped.
func Migrate(ctx context.Context, client *persistence.Client) error {
	if err := client.ValidateDialects(ctx); err != nil {
		return fmt.Errorf("local: migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("local: migrate: %w", err)
	}
	return nil
}
