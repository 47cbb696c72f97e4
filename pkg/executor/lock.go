// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cloudflare/backoff"
	"github.com/lib/pq"

	"github.com/pgforge/pgforge/pkg/dbexec"
)

// DefaultLockKey is the advisory lock key guarding migration apply/rollback,
// distinct from pkg/history's bootstrap lock key so the two never contend.
const DefaultLockKey int64 = 0x70676665786563

// DefaultLockWait is how long Apply/Rollback wait for the advisory lock
// before giving up.
const DefaultLockWait = 30 * time.Second

// lockPollInterval bounds how long a single pg_advisory_lock attempt blocks
// before AcquireLock checks the overall wait budget and retries.
const lockPollInterval = 2 * time.Second

// lockBackoffInterval is the starting interval for the backoff between
// retry attempts once an attempt has failed on lock_timeout.
const lockBackoffInterval = 200 * time.Millisecond

// Lock is a held session-level advisory lock. It must be released via
// Release once the caller is done, and the underlying connection must not
// be reused afterward.
type Lock struct {
	conn *sql.Conn
	key  int64
}

// AcquireLock takes db's migration advisory lock, retrying on lock_timeout
// with an exponential backoff until wait elapses, then giving up with a
// LockBusyError. A wait of zero blocks indefinitely. Only one apply/rollback
// runs against a given database at a time.
func AcquireLock(ctx context.Context, db *sql.DB, key int64, wait time.Duration) (*Lock, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("executor: acquire connection: %w", err)
	}

	if wait <= 0 {
		if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
			conn.Close()
			return nil, fmt.Errorf("executor: acquire advisory lock: %w", err)
		}
		return &Lock{conn: conn, key: key}, nil
	}

	deadline := time.Now().Add(wait)
	b := backoff.New(wait, lockBackoffInterval)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			conn.Close()
			return nil, &LockBusyError{Key: key}
		}

		attempt := remaining
		if attempt > lockPollInterval {
			attempt = lockPollInterval
		}
		if _, err := conn.ExecContext(ctx, fmt.Sprintf("SET lock_timeout = '%dms'", attempt.Milliseconds())); err != nil {
			conn.Close()
			return nil, fmt.Errorf("executor: set lock_timeout: %w", err)
		}

		_, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", key)
		if err == nil {
			return &Lock{conn: conn, key: key}, nil
		}
		if !isLockTimeoutErr(err) {
			conn.Close()
			return nil, fmt.Errorf("executor: acquire advisory lock: %w", err)
		}
		if time.Until(deadline) <= 0 {
			conn.Close()
			return nil, &LockBusyError{Key: key}
		}
		if err := dbexec.SleepCtx(ctx, b.Duration()); err != nil {
			conn.Close()
			return nil, err
		}
	}
}

// Release unlocks and closes the underlying connection.
func (l *Lock) Release(ctx context.Context) error {
	_, unlockErr := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.key)
	closeErr := l.conn.Close()
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}

func isLockTimeoutErr(err error) bool {
	pqErr := &pq.Error{}
	return errors.As(err, &pqErr) && pqErr.Code == "55P03"
}
