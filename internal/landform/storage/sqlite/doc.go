// Package sqlite contains the SQLite repositories for landform domain types.
//
// All database read/write operations for assessment runs, per-class metric
// tables, and ensemble votes belong here rather than in internal/landform.
// This keeps the scoring and voting logic free of SQL noise and makes the
// storage backend swappable in tests.
package sqlite
