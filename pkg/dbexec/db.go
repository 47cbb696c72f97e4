// SPDX-License-Identifier: Apache-2.0

// Package dbexec wraps a *sql.DB with lock_timeout-aware retries. The
// executor runs its transactional apply and rollback paths through it;
// pkg/introspect and pkg/history query the *sql.DB directly.
package dbexec

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cloudflare/backoff"
	"github.com/lib/pq"
)

const (
	lockNotAvailableErrorCode pq.ErrorCode = "55P03"
	maxBackoffDuration                     = 1 * time.Minute
	backoffInterval                        = 1 * time.Second
)

// DB is the minimal surface pgforge's components need from a database
// connection, narrow enough that a test double can implement it without
// pulling in database/sql.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	WithRetryableTransaction(ctx context.Context, f func(context.Context, *sql.Tx) error) error
	Close() error
}

// RDB wraps a *sql.DB and retries operations that fail on lock_timeout
// (Postgres error 55P03) using an exponential backoff, since a migration
// run competing with another session's advisory lock should wait rather
// than fail outright.
type RDB struct {
	DB *sql.DB
}

// New wraps an existing *sql.DB for retrying ExecContext/QueryContext/
// transactions on lock_timeout.
func New(db *sql.DB) *RDB {
	return &RDB{DB: db}
}

func (db *RDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)
	for {
		res, err := db.DB.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		if !isLockTimeout(err) {
			return nil, err
		}
		if err := SleepCtx(ctx, b.Duration()); err != nil {
			return nil, err
		}
	}
}

func (db *RDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)
	for {
		rows, err := db.DB.QueryContext(ctx, query, args...)
		if err == nil {
			return rows, nil
		}
		if !isLockTimeout(err) {
			return nil, err
		}
		if err := SleepCtx(ctx, b.Duration()); err != nil {
			return nil, err
		}
	}
}

// WithRetryableTransaction runs f in a transaction, committing on success and
// retrying the whole transaction on lock_timeout.
func (db *RDB) WithRetryableTransaction(ctx context.Context, f func(context.Context, *sql.Tx) error) error {
	b := backoff.New(maxBackoffDuration, backoffInterval)
	for {
		tx, err := db.DB.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		err = f(ctx, tx)
		if err == nil {
			return tx.Commit()
		}

		if rbErr := tx.Rollback(); rbErr != nil {
			return rbErr
		}

		if !isLockTimeout(err) {
			return err
		}
		if sleepErr := SleepCtx(ctx, b.Duration()); sleepErr != nil {
			return sleepErr
		}
	}
}

func (db *RDB) Close() error {
	return db.DB.Close()
}

func isLockTimeout(err error) bool {
	pqErr := &pq.Error{}
	return errors.As(err, &pqErr) && pqErr.Code == lockNotAvailableErrorCode
}

// SleepCtx sleeps for d, or returns ctx's error if ctx is cancelled first.
// Exported so other components that need the same backoff/context-aware
// wait (pkg/executor's advisory-lock acquisition) don't duplicate it.
func SleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
