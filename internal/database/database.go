package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"asset-store/internal/assets"
	"asset-store/internal/logging"
	"asset-store/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// FileName is the database file created inside the configured directory.
const FileName = "assets.db"

// Database persists asset records in SQLite.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (creating if needed) the database file at dbPath and applies the
// schema. The parent directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{db: db, dbPath: dbPath}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) (err error) {
	defer func(start time.Time) { recordQuery("initialize_schema", start, err) }(time.Now())

	schema := `
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		repository TEXT NOT NULL,
		path TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		subtype TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		has_thumbnail INTEGER NOT NULL DEFAULT 0,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_assets_repository ON assets(repository);
	CREATE INDEX IF NOT EXISTS idx_assets_type ON assets(type);
	CREATE INDEX IF NOT EXISTS idx_assets_has_thumbnail ON assets(has_thumbnail);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	_, err = d.db.ExecContext(ctx, schema)
	return err
}

// Ping verifies the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

const recordColumns = `id, name, repository, path, type, subtype, size, has_thumbnail,
	width, height, duration, created_at, updated_at`

// Insert stores a new record, assigning its ID and timestamps. Any path on
// the input is discarded: paths are assigned by the lifecycle manager
// through Update.
func (d *Database) Insert(ctx context.Context, rec *assets.Record) (err error) {
	defer func(start time.Time) { recordQuery("insert", start, err) }(time.Now())

	if rec.Repository == "" {
		return assets.InvalidParameters("repository", "repository name is required")
	}
	if rec.Type == "" || rec.Subtype == "" {
		return assets.InvalidParameters("mimeType", "type and subtype are required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Second)
	rec.ID = uuid.NewString()
	rec.Path = ""
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO assets (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Name, rec.Repository, rec.Path, rec.Type, rec.Subtype, rec.Size,
		boolToInt(rec.HasThumbnail), rec.Width, rec.Height, rec.Duration,
		now.Unix(), now.Unix())
	if err != nil {
		rec.ID = ""
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// Update writes every mutable field of rec and refreshes UpdatedAt.
func (d *Database) Update(ctx context.Context, rec *assets.Record) (err error) {
	defer func(start time.Time) { recordQuery("update", start, err) }(time.Now())

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Second)
	res, err := d.db.ExecContext(ctx, `
		UPDATE assets SET
			name = ?, repository = ?, path = ?, type = ?, subtype = ?, size = ?,
			has_thumbnail = ?, width = ?, height = ?, duration = ?, updated_at = ?
		WHERE id = ?
	`, rec.Name, rec.Repository, rec.Path, rec.Type, rec.Subtype, rec.Size,
		boolToInt(rec.HasThumbnail), rec.Width, rec.Height, rec.Duration, now.Unix(), rec.ID)
	if err != nil {
		return fmt.Errorf("update asset %s: %w", rec.ID, err)
	}
	if err = requireRow(res, rec.ID); err != nil {
		return err
	}
	rec.UpdatedAt = now
	return nil
}

// Delete removes the record with id, failing NotFound if it does not exist.
func (d *Database) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { recordQuery("delete", start, err) }(time.Now())

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete asset %s: %w", id, err)
	}
	return requireRow(res, id)
}

// Get returns the record with id, failing NotFound if it does not exist.
func (d *Database) Get(ctx context.Context, id string) (rec *assets.Record, err error) {
	defer func(start time.Time) {
		if assets.IsNotFound(err) {
			recordQuery("get", start, nil)
			return
		}
		recordQuery("get", start, err)
	}(time.Now())

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM assets WHERE id = ?", id)
	rec, err = scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, assets.NotFound(id, err)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %s: %w", id, err)
	}
	return rec, nil
}

// List returns every record ordered by creation time.
func (d *Database) List(ctx context.Context) (records []assets.Record, err error) {
	defer func(start time.Time) { recordQuery("list", start, err) }(time.Now())

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT "+recordColumns+" FROM assets ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Inventory summarizes the store for the inventory gauges.
func (d *Database) Inventory(ctx context.Context) (inv metrics.Inventory, err error) {
	defer func(start time.Time) { recordQuery("counts", start, err) }(time.Now())

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	inv.ByKind = make(map[string]int)

	rows, err := d.db.QueryContext(ctx, `
		SELECT type, COUNT(*), COALESCE(SUM(size), 0), COALESCE(SUM(has_thumbnail), 0)
		FROM assets GROUP BY type
	`)
	if err != nil {
		return inv, fmt.Errorf("count assets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			typ        string
			count      int
			bytes      int64
			thumbnails int
		)
		if err := rows.Scan(&typ, &count, &bytes, &thumbnails); err != nil {
			return inv, fmt.Errorf("scan counts: %w", err)
		}
		inv.ByKind[string(assets.KindOf(typ))] += count
		inv.TotalBytes += bytes
		inv.WithThumbnails += thumbnails
	}
	return inv, rows.Err()
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*assets.Record, error) {
	var (
		rec                  assets.Record
		hasThumbnail         int
		createdAt, updatedAt int64
	)
	err := s.Scan(&rec.ID, &rec.Name, &rec.Repository, &rec.Path, &rec.Type, &rec.Subtype,
		&rec.Size, &hasThumbnail, &rec.Width, &rec.Height, &rec.Duration, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	rec.HasThumbnail = hasThumbnail != 0
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &rec, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return assets.NotFound(id, sql.ErrNoRows)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	metrics.DBQueryTotal.WithLabelValues(operation, metrics.Status(err)).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, suffix := range []string{"", "-wal", "-shm"} {
		path := dbPath + suffix
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only! Mode: %v - this will cause write failures", filepath.Base(path), info.Mode())
		if strings.HasSuffix(path, "-wal") || strings.HasSuffix(path, "-shm") {
			if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
				logging.Error("Failed to fix %s permissions: %v", filepath.Base(path), chmodErr)
			} else {
				logging.Info("Fixed %s permissions", filepath.Base(path))
			}
		}
	}

	return nil
}
