// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"github.com/pgforge/pgforge/pkg/history"
	"github.com/pgforge/pgforge/pkg/store"
)

// computePending reconciles the history table against the migration files
// on disk. It never errors itself: every inconsistency it finds (a missing
// file, a changed checksum, a file slotted in before the highest
// already-applied version) is reported as a DriftError in the returned
// slice, alongside the migrations still to apply in ascending version
// order. Apply turns a non-empty drift slice into a hard error unless
// running under force, and Plan always does (Rollback checks for missing
// files itself and does not call computePending);
// Status reports it as per-migration state instead.
func computePending(rows []history.Row, files []*store.Migration) ([]*store.Migration, []*DriftError) {
	applied := make(map[int]history.Row, len(rows))
	maxApplied := 0
	for _, r := range rows {
		applied[r.Version] = r
		if r.Version > maxApplied {
			maxApplied = r.Version
		}
	}

	filesByVersion := make(map[int]*store.Migration, len(files))
	for _, f := range files {
		filesByVersion[f.Version] = f
	}

	var drift []*DriftError
	for _, r := range rows {
		f, ok := filesByVersion[r.Version]
		if !ok {
			drift = append(drift, &DriftError{
				Kind: DriftMissingFile, Version: r.Version, Name: r.Name,
				Detail: "recorded as applied but its file no longer exists",
			})
			continue
		}
		if f.Checksum != r.Checksum {
			drift = append(drift, &DriftError{
				Kind: DriftChecksumMismatch, Version: r.Version, Name: r.Name,
				Detail: "file content changed since it was applied",
			})
		}
	}

	var pending []*store.Migration
	for _, f := range files {
		if _, ok := applied[f.Version]; ok {
			continue
		}
		if f.Version < maxApplied {
			drift = append(drift, &DriftError{
				Kind: DriftOutOfOrder, Version: f.Version, Name: f.Name,
				Detail: "unapplied migration has a lower version than one already applied",
			})
		}
		pending = append(pending, f)
	}

	return pending, drift
}
