package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/hookline/hookline/pkg/logger"

	// Register pgx stdlib driver for database/sql usage in migrations.
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var gooseMu sync.Mutex

// ApplyMigrations runs the embedded SQL migrations with goose. The DSN must
// be understood by database/sql with the pgx stdlib driver name ("pgx").
func ApplyMigrations(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db for migrations: %w", err)
	}
	defer db.Close()
	return runMigrations(ctx, db)
}

// ApplyMigrationsWithLock takes a Postgres advisory lock before migrating so
// concurrently starting nodes do not race each other.
func ApplyMigrationsWithLock(ctx context.Context, dsn string) error {
	const lockTimeout = 45 * time.Second
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db for migrations: %w", err)
	}
	defer db.Close()
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire dedicated connection: %w", err)
	}
	defer conn.Close()
	log := logger.FromContext(ctx)
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	if _, err := conn.ExecContext(
		lockCtx,
		"select pg_advisory_lock(hashtext($1), hashtext($2))",
		"hookline",
		"migrations",
	); err != nil {
		return fmt.Errorf("acquire migration advisory lock: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(
			context.WithoutCancel(ctx),
			"select pg_advisory_unlock(hashtext($1), hashtext($2))",
			"hookline",
			"migrations",
		); err != nil {
			log.Warn("failed to release migration advisory lock", "error", err)
		}
	}()
	return runMigrations(ctx, db)
}

func runMigrations(_ context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
