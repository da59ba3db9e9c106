package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3" // database/sql driver

	"github.com/okian/turnout/internal/domain"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteStore keeps sheets in a sqlite file. Each write runs in an immediate
// transaction so the version check and the replace are atomic across
// processes sharing the file.
type SQLiteStore struct {
	db          *sql.DB
	busyTimeout time.Duration
}

// NewSQLiteStore opens path and applies pending migrations.
func NewSQLiteStore(ctx context.Context, path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	s := &SQLiteStore{busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}

	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=%d&_journal_mode=WAL",
		path, s.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrStoreUnavailable, path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", domain.ErrStoreUnavailable, path, err)
	}
	s.db = db

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	drv, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}
	// m.Close would close the shared *sql.DB through the driver.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}
	return nil
}

// Read implements TabularStore.
func (s *SQLiteStore) Read(ctx context.Context, sheet Sheet) (Snapshot, error) {
	if !knownSheet(sheet) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownSheet, sheet)
	}
	rows, err := s.readRows(ctx, s.db, sheet)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Rows: rows, Version: VersionOf(rows)}, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStore) readRows(ctx context.Context, q queryer, sheet Sheet) ([]Row, error) {
	res, err := q.QueryContext(ctx, `SELECT cells FROM sheet_rows WHERE sheet = ? ORDER BY pos`, string(sheet))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrStoreUnavailable, sheet, err)
	}
	defer func() { _ = res.Close() }()

	var out []Row
	for res.Next() {
		var raw string
		if err := res.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", domain.ErrStoreUnavailable, sheet, err)
		}
		var r Row
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("%w: %s row: %v", ErrMalformedSheet, sheet, err)
		}
		out = append(out, r)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrStoreUnavailable, sheet, err)
	}
	return out, nil
}

// Write implements TabularStore.
func (s *SQLiteStore) Write(ctx context.Context, sheet Sheet, rows []Row, expected Version) (Version, error) {
	if !knownSheet(sheet) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSheet, sheet)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", domain.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if expected != AnyVersion {
		current, err := s.readRows(ctx, tx, sheet)
		if err != nil {
			return 0, err
		}
		if v := VersionOf(current); v != expected {
			return 0, fmt.Errorf("%w: %s at %d, expected %d", domain.ErrConflict, sheet, v, expected)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE sheet = ?`, string(sheet)); err != nil {
		return 0, fmt.Errorf("%w: clear %s: %v", domain.ErrStoreUnavailable, sheet, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sheet_rows (sheet, pos, cells) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare %s: %v", domain.ErrStoreUnavailable, sheet, err)
	}
	defer func() { _ = stmt.Close() }()
	for i, r := range rows {
		raw, err := json.Marshal(r)
		if err != nil {
			return 0, fmt.Errorf("%w: encode %s row %d: %v", ErrMalformedSheet, sheet, i, err)
		}
		if _, err := stmt.ExecContext(ctx, string(sheet), i, string(raw)); err != nil {
			return 0, fmt.Errorf("%w: insert %s row %d: %v", domain.ErrStoreUnavailable, sheet, i, err)
		}
	}

	version := VersionOf(rows)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sheet_versions (sheet, version, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(sheet) DO UPDATE SET version = excluded.version, updated_at = excluded.updated_at`,
		string(sheet), int64(version), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return 0, fmt.Errorf("%w: version %s: %v", domain.ErrStoreUnavailable, sheet, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit %s: %v", domain.ErrStoreUnavailable, sheet, err)
	}
	return version, nil
}

// Close implements TabularStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
