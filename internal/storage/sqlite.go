package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	btclog "github.com/btcsuite/btclog/v2"
	"github.com/golang-migrate/migrate/v4"
	sqlite_migrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// defaultMaxConns is the number of permitted active and idle
	// connections. For SQLite we want a single writer, multiple readers.
	defaultMaxConns = 25

	// defaultConnMaxLifetime is the maximum amount of time a connection
	// can be reused before it is closed.
	defaultConnMaxLifetime = 10 * time.Minute
)

// SqliteConfig holds the config needed to open the actor-state sqlite DB.
type SqliteConfig struct {
	// SkipMigrations, if true, skips running migrations at startup.
	SkipMigrations bool

	// SkipMigrationDBBackup, if true, skips creating a backup of the
	// database before applying migrations.
	SkipMigrationDBBackup bool

	// DatabaseFileName is the full file path of the database file.
	DatabaseFileName string
}

// SqliteStore is a sqlite3-backed implementation of the actor-state store.
type SqliteStore struct {
	cfg *SqliteConfig
	log btclog.Logger

	*Store
}

// NewSqliteStore opens (and, unless skipped, migrates) a sqlite database
// per the given config.
func NewSqliteStore(cfg *SqliteConfig, logger btclog.Logger) (*SqliteStore, error) {
	dir := filepath.Dir(cfg.DatabaseFileName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000",
		cfg.DatabaseFileName,
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxConns)
	db.SetMaxIdleConns(defaultMaxConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := configurePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &SqliteStore{
		cfg:   cfg,
		log:   logger,
		Store: NewStoreWithLogger(db, logger),
	}

	if !cfg.SkipMigrations {
		if err := s.ExecuteMigrations(s.backupAndMigrate); err != nil {
			db.Close()
			return nil, fmt.Errorf("error executing migrations: %w", err)
		}
	}

	return s, nil
}

// backupAndMigrate optionally backs up the database before migrating it to
// the latest version.
func (s *SqliteStore) backupAndMigrate(mig *migrate.Migrate,
	currentDBVersion int, maxMigrationVersion uint) error {

	versionUpgradePending := currentDBVersion < int(maxMigrationVersion)
	if !versionUpgradePending {
		s.log.InfoS(context.Background(), "Current database version is "+
			"up-to-date, skipping migration attempt and backup "+
			"creation",
			"current_db_version", currentDBVersion,
			"max_migration_version", maxMigrationVersion)

		return nil
	}

	if !s.cfg.SkipMigrationDBBackup {
		s.log.InfoS(context.Background(), "Creating database backup "+
			"(before applying migration(s))")

		if err := backupSqliteDatabase(
			s.DB(), s.cfg.DatabaseFileName, s.log,
		); err != nil {
			return err
		}
	} else {
		s.log.InfoS(context.Background(), "Skipping database backup "+
			"creation before applying migration(s)")
	}

	s.log.InfoS(context.Background(), "Applying migrations to database")

	return mig.Up()
}

// ExecuteMigrations runs migrations against the sqlite database up to the
// given target.
func (s *SqliteStore) ExecuteMigrations(target MigrationTarget,
	optFuncs ...MigrateOpt) error {

	opts := defaultMigrateOptions()
	for _, optFunc := range optFuncs {
		optFunc(opts)
	}

	driver, err := sqlite_migrate.WithInstance(s.DB(), &sqlite_migrate.Config{})
	if err != nil {
		return fmt.Errorf("error creating sqlite migration: %w", err)
	}

	return applyMigrations(
		sqlSchemas, driver, "migrations", "sqlite", target, opts, s.log,
	)
}

// DefaultDBPath returns the default path for the actor-state database.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".vactord", "vactor.db"), nil
}

// OpenSQLite opens a SQLite database connection with WAL mode and the
// standard pragmas applied, without running migrations.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := configurePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	return db, nil
}

// configurePragmas sets additional SQLite pragmas for performance.
func configurePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA mmap_size = 268435456",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// Open opens the SQLite database and returns a Store wrapping it, without
// running migrations. Prefer NewSqliteStore for daemon use.
func Open(dbPath string) (*Store, error) {
	db, err := OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}

	return NewStore(db), nil
}
