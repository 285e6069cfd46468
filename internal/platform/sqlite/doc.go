// Package sqlite implements task.Store on a local SQLite file through gorm,
// for single-user deployments that do not run PostgreSQL.
package sqlite
