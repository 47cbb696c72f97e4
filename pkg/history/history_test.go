// SPDX-License-Identifier: Apache-2.0

package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckToolVersionWarnsOnNewerAppliedVersion(t *testing.T) {
	rows := []Row{
		{Version: 1, ToolVersion: "1.2.0"},
		{Version: 2, ToolVersion: "0.9.0"},
		{Version: 3, ToolVersion: ""},
	}
	warnings := CheckToolVersion(rows, "1.0.0")
	require.Len(t, warnings, 1)
	assert.Equal(t, 1, warnings[0].MigrationVersion)
	assert.Equal(t, "1.2.0", warnings[0].AppliedBy)
}

func TestCheckToolVersionNoWarningsWhenUpToDate(t *testing.T) {
	rows := []Row{{Version: 1, ToolVersion: "1.0.0"}}
	assert.Empty(t, CheckToolVersion(rows, "1.0.0"))
	assert.Empty(t, CheckToolVersion(rows, "2.0.0"))
}

func TestCheckToolVersionIgnoresInvalidRunningVersion(t *testing.T) {
	rows := []Row{{Version: 1, ToolVersion: "1.0.0"}}
	assert.Empty(t, CheckToolVersion(rows, ""))
	assert.Empty(t, CheckToolVersion(rows, "not-a-version"))
}

func TestEnsureVPrefix(t *testing.T) {
	assert.Equal(t, "v1.0.0", ensureVPrefix("1.0.0"))
	assert.Equal(t, "v1.0.0", ensureVPrefix("v1.0.0"))
}
