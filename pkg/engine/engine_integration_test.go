// SPDX-License-Identifier: Apache-2.0

package engine_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgforge/pgforge/pkg/engine"
	"github.com/pgforge/pgforge/pkg/testutils"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func TestGenPlanMigrateRoundTrip(t *testing.T) {
	testutils.WithEngineAndConnectionToContainer(t, testutils.TestSchema(), func(e *engine.Engine, _ *sql.DB) {
		ctx := context.Background()

		ddl := `CREATE TABLE users (
			id INTEGER PRIMARY KEY,
			email TEXT NOT NULL UNIQUE
		);`

		d, _, err := e.Plan(ctx, ddl)
		require.NoError(t, err)
		require.False(t, d.IsEmpty())
		require.Len(t, d.AddedTables, 1)
		assert.Equal(t, "users", d.AddedTables[0].Name)

		result, err := e.Gen(ctx, ddl, "create_users")
		require.NoError(t, err)
		require.NotNil(t, result.Migration)
		assert.True(t, strings.HasPrefix(result.Migration.FileName, "0001_create_users"))

		results, err := e.Migrate(ctx, false, false)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "create_users", results[0].Name)

		status, err := e.Status(ctx)
		require.NoError(t, err)
		assert.Len(t, status.Applied, 1)
		assert.Empty(t, status.Pending)
		assert.Empty(t, status.Drift)

		d2, _, err := e.Plan(ctx, ddl)
		require.NoError(t, err)
		assert.True(t, d2.IsEmpty())
	})
}

func TestMigrateDryRunDoesNotApply(t *testing.T) {
	testutils.WithEngineAndConnectionToContainer(t, testutils.TestSchema(), func(e *engine.Engine, _ *sql.DB) {
		ctx := context.Background()

		ddl := `CREATE TABLE widgets (id INTEGER PRIMARY KEY);`
		_, err := e.Gen(ctx, ddl, "create_widgets")
		require.NoError(t, err)

		results, err := e.Migrate(ctx, true, false)
		require.NoError(t, err)
		require.Len(t, results, 1)

		status, err := e.Status(ctx)
		require.NoError(t, err)
		assert.Empty(t, status.Applied)
		require.Len(t, status.Pending, 1)
	})
}

func TestRollbackLastN(t *testing.T) {
	testutils.WithEngineAndConnectionToContainer(t, testutils.TestSchema(), func(e *engine.Engine, _ *sql.DB) {
		ctx := context.Background()

		_, err := e.Gen(ctx, `CREATE TABLE a (id INTEGER PRIMARY KEY);`, "create_a")
		require.NoError(t, err)
		_, err = e.Migrate(ctx, false, false)
		require.NoError(t, err)
		_, err = e.Gen(ctx, `CREATE TABLE a (id INTEGER PRIMARY KEY); CREATE TABLE b (id INTEGER PRIMARY KEY);`, "create_b")
		require.NoError(t, err)

		_, err = e.Migrate(ctx, false, false)
		require.NoError(t, err)

		results, err := e.Rollback(ctx, 2, false)
		require.NoError(t, err)
		require.Len(t, results, 2)

		status, err := e.Status(ctx)
		require.NoError(t, err)
		assert.Empty(t, status.Applied)
	})
}
