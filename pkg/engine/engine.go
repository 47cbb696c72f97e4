// SPDX-License-Identifier: Apache-2.0

// Package engine is pgforge's top-level orchestrator: it wires together the
// parser, introspector, differ, generator, store, history and executor into
// the five operations a caller (cmd/ or another Go program) actually wants:
// Plan, Gen, Migrate, Rollback, Status.
package engine

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/afero"

	"github.com/pgforge/pgforge/internal/connstr"
	"github.com/pgforge/pgforge/pkg/config"
	"github.com/pgforge/pgforge/pkg/ddlparse"
	"github.com/pgforge/pgforge/pkg/diff"
	"github.com/pgforge/pgforge/pkg/executor"
	"github.com/pgforge/pgforge/pkg/history"
	"github.com/pgforge/pgforge/pkg/introspect"
	"github.com/pgforge/pgforge/pkg/sqlgen"
	"github.com/pgforge/pgforge/pkg/store"
)

// ToolVersion is stamped into every history row this binary writes, for
// detecting version skew between the tool that applied a migration and the
// one running now. Set at build time; defaults to "dev" for local/test
// builds.
var ToolVersion = "dev"

// DestructiveChangeError is returned by Gen when a desired-schema diff
// contains a change the differ flagged destructive and Options.CheckForDataLoss
// hasn't been overridden.
type DestructiveChangeError struct {
	Warnings []diff.Warning
}

func (e *DestructiveChangeError) Error() string {
	return fmt.Sprintf("engine: desired schema contains %d destructive change(s); rerun with data-loss checks overridden to proceed", len(e.Warnings))
}

// Engine is a single configured connection to one database, ready to plan,
// generate, apply and roll back migrations against it.
type Engine struct {
	db      *sql.DB
	cfg     config.Config
	conn    config.ConnectionConfig
	store   *store.Store
	history *history.History
	exec    *executor.Executor
}

// Open connects to conn's database, bootstraps the history table, and
// returns a ready Engine. The caller must Close it when done.
func Open(ctx context.Context, cfg config.Config, conn config.ConnectionConfig, fs afero.Fs, logger executor.Logger) (*Engine, error) {
	schemaName := conn.SchemaName
	if schemaName == "" {
		schemaName = "public"
	}

	dsn, err := connstr.AppendSearchPathOption(conn.DSN, schemaName)
	if err != nil {
		return nil, fmt.Errorf("engine: parse connection string: %w", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("engine: open database: %w", err)
	}

	h := history.New(db, schemaName)
	if err := h.Bootstrap(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("engine: bootstrap history: %w", err)
	}

	st := store.New(fs, cfg.MigrationsDir)

	rollbackMode := executor.RollbackPermissive
	if cfg.Options.RollbackStrict {
		rollbackMode = executor.RollbackStrict
	}

	exec := executor.New(db, st, h, executor.Options{
		RollbackMode: rollbackMode,
		LockWait:     cfg.Options.LockWait,
		ToolVersion:  ToolVersion,
		Logger:       logger,
	})

	return &Engine{db: db, cfg: cfg, conn: conn, store: st, history: h, exec: exec}, nil
}

// Close releases the Engine's database connection.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Plan parses desiredDDL, introspects the live schema, and returns the diff
// between them without writing or running anything.
func (e *Engine) Plan(ctx context.Context, desiredDDL string) (*diff.Diff, []ddlparse.Warning, error) {
	desired, parseWarnings, err := ddlparse.Parse(desiredDDL)
	if err != nil {
		return nil, nil, err
	}

	schemaName := e.conn.SchemaName
	if schemaName == "" {
		schemaName = "public"
	}
	current, err := introspect.New(e.db).Introspect(ctx, schemaName)
	if err != nil {
		return nil, nil, err
	}
	// The history table lives in the same schema but is pgforge's own
	// bookkeeping, never part of a desired schema.
	delete(current.Tables, "pgforge_migrations")

	return diff.Compute(current, desired), parseWarnings, nil
}

// GenResult is the outcome of Gen: the migration file written, plus every
// warning surfaced while producing it.
type GenResult struct {
	Migration     *store.Migration
	DiffWarnings  []diff.Warning
	ParseWarnings []ddlparse.Warning
}

// Gen computes the diff between desiredDDL and the live schema, generates
// the DDL that closes it, and persists it as a new migration file. If the
// diff contains a destructive change and CheckForDataLoss is enabled, Gen
// refuses and returns a DestructiveChangeError instead of writing anything.
func (e *Engine) Gen(ctx context.Context, desiredDDL, name string) (*GenResult, error) {
	d, parseWarnings, err := e.Plan(ctx, desiredDDL)
	if err != nil {
		return nil, err
	}
	if d.IsEmpty() {
		return &GenResult{DiffWarnings: d.Warnings, ParseWarnings: parseWarnings}, nil
	}
	if e.cfg.Options.CheckForDataLoss && d.HasDestructiveChanges() {
		return nil, &DestructiveChangeError{Warnings: d.Warnings}
	}

	stmts := sqlgen.Generate(d)
	rendered := sqlgen.Render(stmts)

	m, err := e.store.Create(name, rendered)
	if err != nil {
		return nil, err
	}
	if err := e.store.WithDownStub(m); err != nil {
		return nil, err
	}

	return &GenResult{Migration: m, DiffWarnings: d.Warnings, ParseWarnings: parseWarnings}, nil
}

// Migrate applies every pending migration. dryRun logs the pending
// migrations and their DDL without running anything; force downgrades
// drift that would otherwise refuse the run to a warning.
func (e *Engine) Migrate(ctx context.Context, dryRun, force bool) ([]executor.Result, error) {
	return e.exec.Apply(ctx, executor.RunOptions{Force: force, DryRun: dryRun})
}

// Rollback undoes the last n applied migrations, newest first. force
// downgrades a missing-file or no-down-file condition to a warning instead
// of refusing.
func (e *Engine) Rollback(ctx context.Context, n int, force bool) ([]executor.Result, error) {
	return e.exec.Rollback(ctx, n, executor.RunOptions{Force: force})
}

// Status reports applied and pending migrations.
func (e *Engine) Status(ctx context.Context) (*executor.Status, error) {
	return e.exec.Status(ctx)
}

// CheckToolVersionSkew compares the tool_version recorded against past
// migrations with ToolVersion, surfacing an advisory (never fatal) warning
// for anything applied by a newer binary.
func (e *Engine) CheckToolVersionSkew(ctx context.Context) ([]history.VersionWarning, error) {
	rows, err := e.history.SelectAll(ctx)
	if err != nil {
		return nil, err
	}
	return history.CheckToolVersion(rows, ToolVersion), nil
}
