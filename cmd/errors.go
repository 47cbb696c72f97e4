// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/pgforge/pgforge/pkg/engine"
	"github.com/pgforge/pgforge/pkg/executor"
)

// describeErr renders err the way pgforge's commands want it on the
// terminal: typed failures get a short, specific explanation instead of a
// generic Go error string.
func describeErr(err error) string {
	var destructive *engine.DestructiveChangeError
	if errors.As(err, &destructive) {
		return fmt.Sprintf("%s\nrerun with --skip-data-loss-check to proceed anyway", err)
	}

	var drift *executor.DriftError
	if errors.As(err, &drift) {
		return fmt.Sprintf("%s\nrun 'pgforge status' to see what's recorded versus what's on disk", err)
	}

	var refused *executor.RollbackRefusedError
	if errors.As(err, &refused) {
		return fmt.Sprintf("%s\nrerun with --permissive-rollback to delete the history row without undoing its DDL", err)
	}

	var lockBusy *executor.LockBusyError
	if errors.As(err, &lockBusy) {
		return fmt.Sprintf("%s\nanother pgforge process appears to be running against this database", err)
	}

	return err.Error()
}
