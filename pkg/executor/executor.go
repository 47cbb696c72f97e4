// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pgforge/pgforge/pkg/dbexec"
	"github.com/pgforge/pgforge/pkg/ddlparse"
	"github.com/pgforge/pgforge/pkg/history"
	"github.com/pgforge/pgforge/pkg/store"
)

// Logger receives progress notifications during Apply/Rollback, mirroring
// the granularity pgforge's CLI wants to narrate without coupling the
// executor to any particular presentation.
type Logger interface {
	MigrationStart(version int, name string)
	MigrationComplete(version int, name string)
	MigrationRollback(version int, name string)
	Info(msg string)
}

// NoopLogger discards every notification; used by library callers and
// tests that don't care about progress output.
type NoopLogger struct{}

func (NoopLogger) MigrationStart(int, string)    {}
func (NoopLogger) MigrationComplete(int, string) {}
func (NoopLogger) MigrationRollback(int, string) {}
func (NoopLogger) Info(string)                   {}

// RollbackMode selects how Rollback treats a migration with no down file.
type RollbackMode int

const (
	// RollbackStrict refuses to roll back a migration that has no down
	// file.
	RollbackStrict RollbackMode = iota
	// RollbackPermissive deletes the migration's history row without
	// undoing its DDL ("soft rollback") when no down file exists.
	RollbackPermissive
)

// Options configures an Executor's behavior.
type Options struct {
	RollbackMode RollbackMode
	LockKey      int64
	LockWait     time.Duration
	ToolVersion  string
	Logger       Logger
}

// RunOptions governs a single Apply or Rollback invocation.
type RunOptions struct {
	// Force downgrades drift conditions (missing file, checksum mismatch,
	// out-of-order migration) and, on Rollback, a missing down file, from a
	// hard refusal to a logged warning, and lets Apply proceed anyway.
	Force bool

	// DryRun, for Apply only, logs the pending migrations and their DDL
	// without running anything or taking the advisory lock.
	DryRun bool
}

func (o Options) withDefaults() Options {
	if o.LockKey == 0 {
		o.LockKey = DefaultLockKey
	}
	if o.LockWait == 0 {
		o.LockWait = DefaultLockWait
	}
	if o.Logger == nil {
		o.Logger = NoopLogger{}
	}
	return o
}

// Executor applies, rolls back, and reports on migrations in store against
// db, recording progress in history.
type Executor struct {
	db      *sql.DB
	rdb     *dbexec.RDB
	store   *store.Store
	history *history.History
	opts    Options
}

// New returns an Executor. The caller is responsible for having already
// called history.Bootstrap.
func New(db *sql.DB, st *store.Store, h *history.History, opts Options) *Executor {
	return &Executor{db: db, rdb: dbexec.New(db), store: st, history: h, opts: opts.withDefaults()}
}

// Result describes one migration's outcome during Apply.
type Result struct {
	Version int
	Name    string
}

// reconcile loads the store and history and runs computePending, returning
// the applied history rows, the pending migrations, and every drift
// condition found.
func (e *Executor) reconcile(ctx context.Context) ([]history.Row, []*store.Migration, []*DriftError, error) {
	files, warnings, err := e.store.LoadAll()
	if err != nil {
		return nil, nil, nil, err
	}
	for _, w := range warnings {
		e.opts.Logger.Info("skipping migrations directory entry: " + w.String())
	}
	rows, err := e.history.SelectAll(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	pending, drift := computePending(rows, files)
	return rows, pending, drift, nil
}

// Plan returns the migrations that would be applied, without running
// anything: the files in the store not yet present in history, after
// drift checks pass. Unlike Apply, Plan has no force override — it always
// refuses on drift.
func (e *Executor) Plan(ctx context.Context) ([]*store.Migration, error) {
	_, pending, drift, err := e.reconcile(ctx)
	if err != nil {
		return nil, err
	}
	if len(drift) > 0 {
		return nil, drift[0]
	}
	return pending, nil
}

// Apply runs every pending migration, one per transaction, in version
// order, under the migration advisory lock. Destructive-change
// approval (CheckForDataLoss) is enforced by pkg/engine before a migration
// file is ever written, since once it's on disk there's no diff left to
// check — Executor just runs what the store gives it.
//
// Under RunOptions.Force, drift that would otherwise refuse the run is
// logged as a warning and apply proceeds anyway. Under RunOptions.DryRun,
// Apply logs the pending migrations and their DDL and returns without
// acquiring the lock or running anything.
func (e *Executor) Apply(ctx context.Context, opts RunOptions) ([]Result, error) {
	_, pending, drift, err := e.reconcile(ctx)
	if err != nil {
		return nil, err
	}
	if len(drift) > 0 {
		if !opts.Force {
			return nil, drift[0]
		}
		for _, d := range drift {
			e.opts.Logger.Info("ignoring drift under --force: " + d.Error())
		}
	}

	if opts.DryRun {
		var results []Result
		for _, m := range pending {
			e.opts.Logger.Info(fmt.Sprintf("dry run: would apply %04d_%s:\n%s", m.Version, m.Name, m.SQL))
			results = append(results, Result{Version: m.Version, Name: m.Name})
		}
		return results, nil
	}

	lock, err := AcquireLock(ctx, e.db, e.opts.LockKey, e.opts.LockWait)
	if err != nil {
		return nil, err
	}
	defer lock.Release(ctx) //nolint:errcheck

	var results []Result
	for _, m := range pending {
		e.opts.Logger.MigrationStart(m.Version, m.Name)
		if err := e.applyOne(ctx, m); err != nil {
			return results, err
		}
		e.opts.Logger.MigrationComplete(m.Version, m.Name)
		results = append(results, Result{Version: m.Version, Name: m.Name})
	}
	return results, nil
}

func (e *Executor) applyOne(ctx context.Context, m *store.Migration) error {
	return e.rdb.WithRetryableTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := validateMigration(ctx, tx, m.SQL); err != nil {
			return &ValidationError{Version: m.Version, Name: m.Name, Statement: m.SQL, Err: err}
		}

		for _, stmt := range ddlparse.SplitStatements(m.SQL) {
			if _, err := tx.ExecContext(ctx, stmt.Text); err != nil {
				return &ExecutionError{Version: m.Version, Name: m.Name, Statement: stmt.Text, Err: err}
			}
		}

		return e.history.Insert(ctx, tx, history.Row{Version: m.Version, Name: m.Name, Checksum: m.Checksum}, e.opts.ToolVersion)
	})
}

// Rollback undoes the last n applied migrations, newest first: runs each
// one's down file if it has one, or in permissive mode (or under
// RunOptions.Force) deletes its history row without undoing any DDL.
func (e *Executor) Rollback(ctx context.Context, n int, opts RunOptions) ([]Result, error) {
	lock, err := AcquireLock(ctx, e.db, e.opts.LockKey, e.opts.LockWait)
	if err != nil {
		return nil, err
	}
	defer lock.Release(ctx) //nolint:errcheck

	rows, err := e.history.SelectLastN(ctx, n)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	files, warnings, err := e.store.LoadAll()
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		e.opts.Logger.Info("skipping migrations directory entry: " + w.String())
	}
	filesByVersion := make(map[int]*store.Migration, len(files))
	for _, f := range files {
		filesByVersion[f.Version] = f
	}

	var results []Result
	for _, last := range rows {
		m, ok := filesByVersion[last.Version]
		if !ok {
			if !opts.Force {
				return results, &DriftError{Kind: DriftMissingFile, Version: last.Version, Name: last.Name, Detail: "cannot roll back: file no longer exists"}
			}
			e.opts.Logger.Info(fmt.Sprintf("skipping rollback of %04d_%s under --force: file no longer exists", last.Version, last.Name))
			continue
		}

		downSQL, hasDown, err := e.store.LoadDown(m)
		if err != nil {
			return results, err
		}

		if !hasDown {
			if e.opts.RollbackMode == RollbackStrict && !opts.Force {
				return results, &RollbackRefusedError{Version: m.Version, Name: m.Name}
			}
			if err := e.softRollback(ctx, m); err != nil {
				return results, err
			}
			e.opts.Logger.MigrationRollback(m.Version, m.Name)
			results = append(results, Result{Version: m.Version, Name: m.Name})
			continue
		}

		if err := e.hardRollback(ctx, m, downSQL); err != nil {
			return results, err
		}
		e.opts.Logger.MigrationRollback(m.Version, m.Name)
		results = append(results, Result{Version: m.Version, Name: m.Name})
	}
	return results, nil
}

func (e *Executor) softRollback(ctx context.Context, m *store.Migration) error {
	return e.rdb.WithRetryableTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return e.history.Delete(ctx, tx, m.Version)
	})
}

func (e *Executor) hardRollback(ctx context.Context, m *store.Migration, downSQL string) error {
	return e.rdb.WithRetryableTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range ddlparse.SplitStatements(downSQL) {
			if _, err := tx.ExecContext(ctx, stmt.Text); err != nil {
				return &ExecutionError{Version: m.Version, Name: m.Name, Statement: stmt.Text, Err: err}
			}
		}
		return e.history.Delete(ctx, tx, m.Version)
	})
}

// Status reports every applied migration, every pending one, and any drift
// between the history table and the files on disk — unlike Plan/Apply,
// Status never refuses on drift; reporting it is the whole point.
type Status struct {
	Applied []history.Row
	Pending []*store.Migration
	Drift   []*DriftError
}

func (e *Executor) Status(ctx context.Context) (*Status, error) {
	rows, pending, drift, err := e.reconcile(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{Applied: rows, Pending: pending, Drift: drift}, nil
}
