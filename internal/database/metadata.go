package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const lastHousekeepingKey = "last_housekeeping_run"

// GetMetadata retrieves a metadata value by key.
// Returns sql.ErrNoRows if the key doesn't exist.
func (d *Database) GetMetadata(ctx context.Context, key string) (value string, err error) {
	defer func(start time.Time) {
		if errors.Is(err, sql.ErrNoRows) {
			recordQuery("get_metadata", start, nil)
			return
		}
		recordQuery("get_metadata", start, err)
	}(time.Now())

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var v sql.NullString
	err = d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&v)
	if err != nil {
		return "", err
	}
	return v.String, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) (err error) {
	defer func(start time.Time) { recordQuery("set_metadata", start, err) }(time.Now())

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetLastHousekeeping returns when housekeeping last completed.
// Returns zero time if it never ran.
func (d *Database) GetLastHousekeeping(ctx context.Context) (time.Time, error) {
	value, err := d.GetMetadata(ctx, lastHousekeepingKey)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && value == "") {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, value)
}

// SetLastHousekeeping records when housekeeping last completed. A zero time
// clears the value.
func (d *Database) SetLastHousekeeping(ctx context.Context, t time.Time) error {
	if t.IsZero() {
		return d.SetMetadata(ctx, lastHousekeepingKey, "")
	}
	return d.SetMetadata(ctx, lastHousekeepingKey, t.UTC().Format(time.RFC3339))
}
