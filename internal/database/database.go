package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/mysql/*.sql
var migrations embed.FS

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config selects the backing store.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// Open opens the configured database, verifies the connection and runs migrations.
func Open(cfg Config) (*sql.DB, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db, cfg.Driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// Connect opens and pings the database without migrating it.
func Connect(cfg Config) (*sql.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	var dsn string
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(cfg.DSN)
	case DriverMySQL:
		normalized, err := MySQLDSN(cfg.DSN)
		if err != nil {
			return nil, err
		}
		dsn = normalized
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if driver == DriverMySQL {
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return db, nil
}

// sqliteDSN appends the connection pragmas unless the caller already supplied a query string.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// MySQLDSN forces the options the stores depend on: parsed DATETIME columns in UTC.
func MySQLDSN(dsn string) (string, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN(), nil
}

// Migrate applies all pending migrations for the driver.
func Migrate(db *sql.DB, driver string) error {
	dialect, dir, err := migrationSource(driver)
	if err != nil {
		return err
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// MigrationVersion reports the current schema version.
func MigrationVersion(db *sql.DB, driver string) (int64, error) {
	dialect, _, err := migrationSource(driver)
	if err != nil {
		return 0, err
	}
	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("set dialect: %w", err)
	}
	return goose.GetDBVersion(db)
}

func migrationSource(driver string) (dialect, dir string, err error) {
	switch driver {
	case DriverSQLite, "":
		return "sqlite3", "migrations/sqlite", nil
	case DriverMySQL:
		return "mysql", "migrations/mysql", nil
	default:
		return "", "", fmt.Errorf("unsupported driver %q", driver)
	}
}
