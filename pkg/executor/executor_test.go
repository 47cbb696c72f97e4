// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgforge/pgforge/pkg/history"
	"github.com/pgforge/pgforge/pkg/store"
)

func TestComputePendingReturnsUnappliedInOrder(t *testing.T) {
	files := []*store.Migration{
		{Version: 1, Name: "one", Checksum: "a"},
		{Version: 2, Name: "two", Checksum: "b"},
		{Version: 3, Name: "three", Checksum: "c"},
	}
	rows := []history.Row{{Version: 1, Name: "one", Checksum: "a"}}

	pending, drift := computePending(rows, files)
	assert.Empty(t, drift)
	require.Len(t, pending, 2)
	assert.Equal(t, 2, pending[0].Version)
	assert.Equal(t, 3, pending[1].Version)
}

func TestComputePendingDetectsChecksumMismatch(t *testing.T) {
	files := []*store.Migration{{Version: 1, Name: "one", Checksum: "changed"}}
	rows := []history.Row{{Version: 1, Name: "one", Checksum: "original"}}

	_, drift := computePending(rows, files)
	require.Len(t, drift, 1)
	assert.Equal(t, DriftChecksumMismatch, drift[0].Kind)
}

func TestComputePendingDetectsMissingFile(t *testing.T) {
	rows := []history.Row{{Version: 1, Name: "one", Checksum: "a"}}
	_, drift := computePending(rows, nil)
	require.Len(t, drift, 1)
	assert.Equal(t, DriftMissingFile, drift[0].Kind)
}

func TestComputePendingDetectsOutOfOrder(t *testing.T) {
	files := []*store.Migration{
		{Version: 1, Name: "one", Checksum: "a"},
		{Version: 2, Name: "two", Checksum: "b"},
	}
	rows := []history.Row{{Version: 2, Name: "two", Checksum: "b"}}

	_, drift := computePending(rows, files)
	require.Len(t, drift, 1)
	assert.Equal(t, DriftOutOfOrder, drift[0].Kind)
}

func TestIsUtilityStatementCannotBePrepared(t *testing.T) {
	err := &pq.Error{Code: "42601", Message: "utility statements cannot be prepared"}
	assert.True(t, isUtilityStatementCannotBePrepared(err))

	other := &pq.Error{Code: "42601", Message: "syntax error"}
	assert.False(t, isUtilityStatementCannotBePrepared(other))
}

func TestRollbackRefusedErrorMessage(t *testing.T) {
	err := &RollbackRefusedError{Version: 3, Name: "drop_legacy"}
	assert.Contains(t, err.Error(), "strict mode")
}
