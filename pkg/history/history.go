// SPDX-License-Identifier: Apache-2.0

// Package history manages the Postgres-resident ledger of applied
// migrations: a table recording which migrations have run,
// their checksums, and when, bootstrapped idempotently under an advisory
// lock the same way pgforge's own migrations are serialized.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/mod/semver"
)

// bootstrapLockKey is a fixed advisory lock key used only to serialize
// concurrent bootstrap attempts (creating the history table itself), distinct
// from the per-migration-run lock key in pkg/executor.
const bootstrapLockKey = 0x70676f_726765 // "pgorge" in hex, arbitrary but stable

// Row is one applied-migration record.
type Row struct {
	Version     int
	Name        string
	Checksum    string
	AppliedAt   time.Time
	ToolVersion string
}

// History reads and writes the migrations ledger table, qualified by schema
// name (e.g. "public.pgforge_migrations").
type History struct {
	db         *sql.DB
	schemaName string
	tableName  string
}

// New returns a History backed by db, storing its ledger at
// schemaName.pgforge_migrations.
func New(db *sql.DB, schemaName string) *History {
	return &History{db: db, schemaName: schemaName, tableName: "pgforge_migrations"}
}

func (h *History) qualifiedTable() string {
	return fmt.Sprintf("%q.%q", h.schemaName, h.tableName)
}

// Bootstrap idempotently creates the history table if it doesn't already
// exist, under an advisory lock so concurrent first-time callers don't race
// with each other, the same pattern pgforge uses for migration application
// itself.
func (h *History) Bootstrap(ctx context.Context) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin bootstrap: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", bootstrapLockKey); err != nil {
		return fmt.Errorf("history: acquire bootstrap lock: %w", err)
	}

	ddl := fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %q;

CREATE TABLE IF NOT EXISTS %s (
    version      INTEGER PRIMARY KEY,
    name         TEXT NOT NULL,
    checksum     TEXT NOT NULL,
    applied_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    tool_version TEXT NOT NULL DEFAULT ''
);
`, h.schemaName, h.qualifiedTable())

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("history: create ledger table: %w", err)
	}

	return tx.Commit()
}

// Insert records a migration as applied, within the caller's transaction:
// the history row is written in the same transaction as the migration's own
// DDL, so a crash mid-apply can't record success falsely.
func (h *History) Insert(ctx context.Context, tx *sql.Tx, row Row, toolVersion string) error {
	sql := fmt.Sprintf(`INSERT INTO %s (version, name, checksum, tool_version) VALUES ($1, $2, $3, $4)`, h.qualifiedTable())
	_, err := tx.ExecContext(ctx, sql, row.Version, row.Name, row.Checksum, toolVersion)
	if err != nil {
		return fmt.Errorf("history: insert %d_%s: %w", row.Version, row.Name, err)
	}
	return nil
}

// Delete removes a migration's history row, used by permissive-mode
// rollback when no down file exists.
func (h *History) Delete(ctx context.Context, tx *sql.Tx, version int) error {
	sql := fmt.Sprintf(`DELETE FROM %s WHERE version = $1`, h.qualifiedTable())
	_, err := tx.ExecContext(ctx, sql, version)
	if err != nil {
		return fmt.Errorf("history: delete version %d: %w", version, err)
	}
	return nil
}

// SelectAll returns every applied migration, ordered by version ascending.
func (h *History) SelectAll(ctx context.Context) ([]Row, error) {
	sql := fmt.Sprintf(`SELECT version, name, checksum, applied_at, tool_version FROM %s ORDER BY version`, h.qualifiedTable())
	rows, err := h.db.QueryContext(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("history: select all: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Version, &r.Name, &r.Checksum, &r.AppliedAt, &r.ToolVersion); err != nil {
			return nil, fmt.Errorf("history: scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SelectLastN returns the most recently applied N migrations, newest first,
// used by rollback to find the migration to undo.
func (h *History) SelectLastN(ctx context.Context, n int) ([]Row, error) {
	sql := fmt.Sprintf(`SELECT version, name, checksum, applied_at, tool_version FROM %s ORDER BY version DESC LIMIT $1`, h.qualifiedTable())
	rows, err := h.db.QueryContext(ctx, sql, n)
	if err != nil {
		return nil, fmt.Errorf("history: select last %d: %w", n, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Version, &r.Name, &r.Checksum, &r.AppliedAt, &r.ToolVersion); err != nil {
			return nil, fmt.Errorf("history: scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// VersionWarning is returned (never as an error: the check is advisory
// only) when the tool version that applied a past migration is newer than
// the binary currently running.
type VersionWarning struct {
	MigrationVersion int
	AppliedBy        string
	RunningAs        string
}

func (w VersionWarning) String() string {
	return fmt.Sprintf("migration %d was applied by pgforge %s, which is newer than the running %s", w.MigrationVersion, w.AppliedBy, w.RunningAs)
}

// CheckToolVersion compares the tool_version recorded against past
// migrations with the running binary's version, returning a warning for
// any row applied by a strictly newer tool. Purely advisory; never blocks
// an operation.
func CheckToolVersion(rows []Row, runningVersion string) []VersionWarning {
	if runningVersion == "" || !semver.IsValid(ensureVPrefix(runningVersion)) {
		return nil
	}
	var warnings []VersionWarning
	for _, r := range rows {
		if r.ToolVersion == "" {
			continue
		}
		applied := ensureVPrefix(r.ToolVersion)
		if !semver.IsValid(applied) {
			continue
		}
		if semver.Compare(applied, ensureVPrefix(runningVersion)) > 0 {
			warnings = append(warnings, VersionWarning{MigrationVersion: r.Version, AppliedBy: r.ToolVersion, RunningAs: runningVersion})
		}
	}
	return warnings
}

func ensureVPrefix(v string) string {
	if len(v) > 0 && v[0] == 'v' {
		return v
	}
	return "v" + v
}
