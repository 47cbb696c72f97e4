// SPDX-License-Identifier: Apache-2.0

package sqlgen

import (
	"strings"
	"testing"

	"github.com/pgforge/pgforge/pkg/ddlparse"
	"github.com/pgforge/pgforge/pkg/diff"
	"github.com/pgforge/pgforge/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCreateTable(t *testing.T) {
	users := schema.NewTable("users")
	users.AddColumn(&schema.Column{Name: "id", Type: "INTEGER", Nullable: false, PrimaryKey: true})
	users.AddColumn(&schema.Column{Name: "email", Type: "TEXT", Nullable: false})
	users.Constraints["users_pkey"] = &schema.Constraint{Name: "users_pkey", Kind: schema.PrimaryKeyConstraint, Columns: []string{"id"}}

	d := &diff.Diff{AddedTables: []*schema.Table{users}}
	stmts := Generate(d)

	require.Len(t, stmts, 1)
	assert.Equal(t, StepCreateTables, stmts[0].Step)
	assert.Contains(t, stmts[0].SQL, `CREATE TABLE "users"`)
	assert.Contains(t, stmts[0].SQL, `"id" INTEGER NOT NULL`)
	assert.Contains(t, stmts[0].SQL, `CONSTRAINT "users_pkey" PRIMARY KEY ("id")`)
}

func TestGenerateOrdersDropBeforeCreate(t *testing.T) {
	d := &diff.Diff{
		DroppedTables: []string{"old"},
		AddedTables:   []*schema.Table{schema.NewTable("new")},
	}
	stmts := Generate(d)
	require.Len(t, stmts, 2)
	assert.Equal(t, StepDropTables, stmts[0].Step)
	assert.Equal(t, StepCreateTables, stmts[1].Step)
}

func TestGenerateForeignKeysAddedLast(t *testing.T) {
	orders := schema.NewTable("orders")
	orders.AddColumn(&schema.Column{Name: "user_id", Type: "INTEGER", Nullable: true})
	orders.Constraints["orders_user_id_fkey"] = &schema.Constraint{
		Name: "orders_user_id_fkey", Kind: schema.ForeignKeyConstraint, Columns: []string{"user_id"},
		Reference: &schema.ForeignKeyReference{Table: "users", Columns: []string{"id"}},
	}

	d := &diff.Diff{AddedTables: []*schema.Table{orders}}
	stmts := Generate(d)

	require.Len(t, stmts, 2)
	assert.Equal(t, StepCreateTables, stmts[0].Step)
	assert.NotContains(t, stmts[0].SQL, "FOREIGN KEY")
	assert.Equal(t, StepAddForeignKeys, stmts[1].Step)
	assert.Contains(t, stmts[1].SQL, "FOREIGN KEY")
}

func TestGenerateAlterTableColumnChanges(t *testing.T) {
	d := &diff.Diff{
		ModifiedTables: []*diff.TableDiff{
			{
				Table:          "users",
				AddedColumns:   []*schema.Column{{Name: "nickname", Type: "TEXT", Nullable: true}},
				DroppedColumns: []string{"legacy"},
			},
		},
	}
	stmts := Generate(d)
	var sqls []string
	for _, s := range stmts {
		sqls = append(sqls, s.SQL)
	}
	joined := strings.Join(sqls, "\n")
	assert.Contains(t, joined, `ADD COLUMN "nickname" TEXT`)
	assert.Contains(t, joined, `DROP COLUMN "legacy"`)
}

func TestGenerateDropForeignKeyBeforeDropTable(t *testing.T) {
	d := &diff.Diff{
		DroppedTables: []string{"orders"},
		ModifiedTables: []*diff.TableDiff{
			{
				Table: "orders",
				DroppedConstraints: []diff.DroppedConstraint{
					{Name: "orders_user_id_fkey", Kind: schema.ForeignKeyConstraint},
				},
			},
		},
	}
	stmts := Generate(d)
	require.True(t, len(stmts) >= 2)
	assert.Equal(t, StepDropForeignKeys, stmts[0].Step)
	dropTableIdx := -1
	for i, s := range stmts {
		if s.Step == StepDropTables {
			dropTableIdx = i
		}
	}
	require.NotEqual(t, -1, dropTableIdx)
	assert.Less(t, 0, dropTableIdx)
}

func TestGenerateCreateTablePreservesPrimaryKeyOnReparse(t *testing.T) {
	users := schema.NewTable("users")
	users.AddColumn(&schema.Column{Name: "id", Type: "INTEGER", Nullable: false, PrimaryKey: true})
	users.AddColumn(&schema.Column{Name: "email", Type: "TEXT", Nullable: false})
	users.Constraints["users_pkey"] = &schema.Constraint{Name: "users_pkey", Kind: schema.PrimaryKeyConstraint, Columns: []string{"id"}}

	d := &diff.Diff{AddedTables: []*schema.Table{users}}
	stmts := Generate(d)
	require.Len(t, stmts, 1)

	reparsed, warnings, err := ddlparse.Parse(stmts[0].SQL + ";")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	reUsers := reparsed.GetTable("users")
	require.NotNil(t, reUsers)
	assert.True(t, reUsers.GetColumn("id").PrimaryKey)
	assert.False(t, reUsers.GetColumn("email").PrimaryKey)
	pk := reUsers.PrimaryKeyConstraintFor()
	require.NotNil(t, pk)
	assert.Equal(t, []string{"id"}, pk.Columns)
}

func TestRenderIncludesHeader(t *testing.T) {
	out := Render([]Statement{{SQL: "SELECT 1", Step: StepCreateTables}})
	assert.True(t, strings.HasPrefix(out, HeaderComment))
	assert.Contains(t, out, "SELECT 1;")
}
