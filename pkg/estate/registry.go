package estate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const activeEstateKey = "active_estate"

// Registry is the estate lookup surface commands depend on.
type Registry interface {
	Register(ctx context.Context, record Record) error
	Get(ctx context.Context, alias string) (*Record, error)
	List(ctx context.Context) ([]Record, error)
	Remove(ctx context.Context, alias string) error
	SetActive(ctx context.Context, alias string) error
	Active(ctx context.Context) (*Record, error)
}

// Config holds SQLite registry configuration.
type Config struct {
	Path string
}

// DefaultPath returns the registry database location under the user config
// directory, creating parent directories as needed.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config dir: %w", err)
	}
	dir := filepath.Join(base, "concordat")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}
	return filepath.Join(dir, "concordat.db"), nil
}

// SQLiteRegistry implements Registry backed by a local SQLite database.
type SQLiteRegistry struct {
	db   *sql.DB
	path string
}

// NewSQLiteRegistry creates a registry instance for the given configuration.
func NewSQLiteRegistry(cfg Config) (*SQLiteRegistry, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteRegistry{path: cfg.Path}, nil
}

// Init opens the database connection and enables WAL mode.
func (r *SQLiteRegistry) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", r.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	r.db = db
	return nil
}

// Close closes the database connection.
func (r *SQLiteRegistry) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (r *SQLiteRegistry) Migrate(_ context.Context) error {
	if r.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(r.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Register stores a new estate record.
func (r *SQLiteRegistry) Register(ctx context.Context, record Record) error {
	if record.Alias == "" {
		return fmt.Errorf("estate alias is required")
	}
	now := time.Now().UTC()
	query := `
		INSERT INTO estates (alias, github_owner, repo_url, branch, inventory_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		record.Alias,
		record.GitHubOwner,
		record.RepoURL,
		record.Branch,
		record.InventoryPath,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &DuplicateAliasError{Alias: record.Alias}
		}
		return fmt.Errorf("failed to register estate: %w", err)
	}
	return nil
}

// Get retrieves an estate record by alias.
func (r *SQLiteRegistry) Get(ctx context.Context, alias string) (*Record, error) {
	query := `
		SELECT alias, github_owner, repo_url, branch, inventory_path, created_at, updated_at
		FROM estates
		WHERE alias = ?
	`
	record := &Record{}
	err := r.db.QueryRowContext(ctx, query, alias).Scan(
		&record.Alias,
		&record.GitHubOwner,
		&record.RepoURL,
		&record.Branch,
		&record.InventoryPath,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotConfiguredError{Alias: alias}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get estate: %w", err)
	}
	return record, nil
}

// List returns all registered estates ordered by alias.
func (r *SQLiteRegistry) List(ctx context.Context) ([]Record, error) {
	query := `
		SELECT alias, github_owner, repo_url, branch, inventory_path, created_at, updated_at
		FROM estates
		ORDER BY alias
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list estates: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		if err := rows.Scan(
			&record.Alias,
			&record.GitHubOwner,
			&record.RepoURL,
			&record.Branch,
			&record.InventoryPath,
			&record.CreatedAt,
			&record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan estate: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate estates: %w", err)
	}
	return records, nil
}

// Remove deletes an estate record and clears the active marker when it
// pointed at the removed alias.
func (r *SQLiteRegistry) Remove(ctx context.Context, alias string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM estates WHERE alias = ?`, alias)
	if err != nil {
		return fmt.Errorf("failed to remove estate: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check removal: %w", err)
	}
	if affected == 0 {
		return &NotConfiguredError{Alias: alias}
	}
	_, err = r.db.ExecContext(ctx,
		`DELETE FROM settings WHERE key = ? AND value = ?`, activeEstateKey, alias)
	if err != nil {
		return fmt.Errorf("failed to clear active estate: %w", err)
	}
	return nil
}

// SetActive marks an existing alias as the active estate.
func (r *SQLiteRegistry) SetActive(ctx context.Context, alias string) error {
	if _, err := r.Get(ctx, alias); err != nil {
		return err
	}
	query := `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := r.db.ExecContext(ctx, query, activeEstateKey, alias); err != nil {
		return fmt.Errorf("failed to set active estate: %w", err)
	}
	return nil
}

// Active returns the currently selected estate record.
func (r *SQLiteRegistry) Active(ctx context.Context) (*Record, error) {
	var alias string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, activeEstateKey).Scan(&alias)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NoActiveEstateError{}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read active estate: %w", err)
	}
	return r.Get(ctx, alias)
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces constraint failures in the error text;
	// matching on the SQLite message keeps the driver dependency narrow.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
