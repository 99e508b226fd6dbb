// Package database persists asset records in SQLite.
//
// Each asset is one row of the assets table keyed by a UUID assigned on
// insert. A small metadata key/value table holds process state such as the
// time of the last housekeeping run.
//
// The database runs in WAL mode and every query is recorded in the
// asset_store_db_* metrics.
package database
