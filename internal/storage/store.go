// Package storage is the durable local persistence layer. Entity collections
// are stored as one JSON document per key in SQLite, matching the shape they
// sync against in the remote store; the outbox of pending mutations gets its
// own table so entries keep a monotonically increasing id.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pocketbook/internal/core"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Collection keys in the collections table.
const (
	KeyBudgets        = "budgets"
	KeyLoans          = "loans"
	KeyCounterparties = "loan_counterparties"
	KeyCategories     = "budget_categories"
	KeySettings       = "settings"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations brings the schema up to date from the embedded migration
// files. golang-migrate takes ownership of the connection it is handed and
// closes it, so the schema work happens on a throwaway connection rather than
// the store's own.
func runMigrations(dbPath string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	schemaDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open schema connection: %w", err)
	}
	driver, err := migratesqlite.WithInstance(schemaDB, &migratesqlite.Config{})
	if err != nil {
		schemaDB.Close()
		return fmt.Errorf("wrap schema connection: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		schemaDB.Close()
		return fmt.Errorf("prepare migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// getCollection unmarshals the JSON document stored under key into dest.
// A missing key leaves dest untouched and returns no error.
func (s *SQLiteStore) getCollection(ctx context.Context, key string, dest any) error {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM collections WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read collection %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("decode collection %s: %w", key, err)
	}
	return nil
}

// putCollection stores v as the JSON document under key, replacing any
// previous value.
func (s *SQLiteStore) putCollection(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode collection %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO collections (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(raw), core.NowMillis())
	if err != nil {
		return fmt.Errorf("write collection %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Budgets(ctx context.Context) ([]core.Budget, error) {
	var budgets []core.Budget
	if err := s.getCollection(ctx, KeyBudgets, &budgets); err != nil {
		return nil, err
	}
	return budgets, nil
}

func (s *SQLiteStore) SaveBudgets(ctx context.Context, budgets []core.Budget) error {
	if budgets == nil {
		budgets = []core.Budget{}
	}
	return s.putCollection(ctx, KeyBudgets, budgets)
}

func (s *SQLiteStore) Loans(ctx context.Context) ([]core.Loan, error) {
	var loans []core.Loan
	if err := s.getCollection(ctx, KeyLoans, &loans); err != nil {
		return nil, err
	}
	return loans, nil
}

func (s *SQLiteStore) SaveLoans(ctx context.Context, loans []core.Loan) error {
	if loans == nil {
		loans = []core.Loan{}
	}
	return s.putCollection(ctx, KeyLoans, loans)
}

func (s *SQLiteStore) Counterparties(ctx context.Context) ([]core.Counterparty, error) {
	var cps []core.Counterparty
	if err := s.getCollection(ctx, KeyCounterparties, &cps); err != nil {
		return nil, err
	}
	return cps, nil
}

func (s *SQLiteStore) SaveCounterparties(ctx context.Context, cps []core.Counterparty) error {
	if cps == nil {
		cps = []core.Counterparty{}
	}
	return s.putCollection(ctx, KeyCounterparties, cps)
}

// Categories returns the stored category names, seeding the defaults when the
// collection has never been written.
func (s *SQLiteStore) Categories(ctx context.Context) ([]string, error) {
	var cats []string
	if err := s.getCollection(ctx, KeyCategories, &cats); err != nil {
		return nil, err
	}
	if cats == nil {
		cats = core.DefaultCategories()
	}
	return cats, nil
}

func (s *SQLiteStore) SaveCategories(ctx context.Context, cats []string) error {
	if cats == nil {
		cats = []string{}
	}
	return s.putCollection(ctx, KeyCategories, cats)
}

func (s *SQLiteStore) Settings(ctx context.Context) (core.Settings, error) {
	var settings core.Settings
	if err := s.getCollection(ctx, KeySettings, &settings); err != nil {
		return core.Settings{}, err
	}
	return settings, nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, settings core.Settings) error {
	return s.putCollection(ctx, KeySettings, settings)
}
