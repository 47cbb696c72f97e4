// SPDX-License-Identifier: Apache-2.0

package diff

import (
	"testing"

	"github.com/pgforge/pgforge/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func table(name string, cols ...*schema.Column) *schema.Table {
	t := schema.NewTable(name)
	for _, c := range cols {
		t.AddColumn(c)
	}
	return t
}

func col(name, typ string, nullable bool) *schema.Column {
	return &schema.Column{Name: name, Type: typ, Nullable: nullable}
}

func TestComputeAddedAndDroppedTables(t *testing.T) {
	current := schema.New("public")
	current.AddTable(table("old", col("id", "INTEGER", false)))

	desired := schema.New("public")
	desired.AddTable(table("new", col("id", "INTEGER", false)))

	d := Compute(current, desired)
	require.Len(t, d.AddedTables, 1)
	assert.Equal(t, "new", d.AddedTables[0].Name)
	require.Len(t, d.DroppedTables, 1)
	assert.Equal(t, "old", d.DroppedTables[0])
	assert.True(t, d.HasDestructiveChanges())
}

func TestComputeAddedAndDroppedColumns(t *testing.T) {
	current := schema.New("public")
	current.AddTable(table("users", col("id", "INTEGER", false), col("legacy", "TEXT", true)))

	desired := schema.New("public")
	desired.AddTable(table("users", col("id", "INTEGER", false), col("email", "TEXT", true)))

	d := Compute(current, desired)
	require.Len(t, d.ModifiedTables, 1)
	td := d.ModifiedTables[0]
	require.Len(t, td.AddedColumns, 1)
	assert.Equal(t, "email", td.AddedColumns[0].Name)
	require.Len(t, td.DroppedColumns, 1)
	assert.Equal(t, "legacy", td.DroppedColumns[0])
	assert.True(t, d.HasDestructiveChanges())
}

func TestComputeNewNotNullColumnWithoutDefaultWarns(t *testing.T) {
	current := schema.New("public")
	current.AddTable(table("users", col("id", "INTEGER", false)))

	desired := schema.New("public")
	desired.AddTable(table("users", col("id", "INTEGER", false), col("email", "TEXT", false)))

	d := Compute(current, desired)
	require.Len(t, d.Warnings, 1)
	assert.Equal(t, SeverityDestructive, d.Warnings[0].Severity)
}

func TestComputeNoChangesIsEmpty(t *testing.T) {
	s := schema.New("public")
	s.AddTable(table("users", col("id", "INTEGER", false)))

	d := Compute(s, s)
	assert.True(t, d.IsEmpty())
	assert.False(t, d.HasDestructiveChanges())
}

func TestComputeTypeChangeSafeWidening(t *testing.T) {
	current := schema.New("public")
	current.AddTable(table("users", col("balance", "INTEGER", true)))

	desired := schema.New("public")
	desired.AddTable(table("users", col("balance", "BIGINT", true)))

	d := Compute(current, desired)
	require.Len(t, d.ModifiedTables, 1)
	require.Len(t, d.ModifiedTables[0].ModifiedColumns, 1)
	cd := d.ModifiedTables[0].ModifiedColumns[0]
	assert.True(t, cd.TypeChanged)
	assert.True(t, cd.SafeWidening)
}

func TestComputePrimaryKeyFlagChangeIsModification(t *testing.T) {
	current := schema.New("public")
	current.AddTable(table("users", col("id", "INTEGER", false)))

	desired := schema.New("public")
	desiredID := col("id", "INTEGER", false)
	desiredID.PrimaryKey = true
	desired.AddTable(table("users", desiredID))

	d := Compute(current, desired)
	require.Len(t, d.ModifiedTables, 1)
	require.Len(t, d.ModifiedTables[0].ModifiedColumns, 1)
	cd := d.ModifiedTables[0].ModifiedColumns[0]
	assert.True(t, cd.PrimaryKeyChanged)
	assert.False(t, cd.TypeChanged)
}

func TestIsSafeWidening(t *testing.T) {
	assert.True(t, IsSafeWidening("INTEGER", "BIGINT"))
	assert.True(t, IsSafeWidening("VARCHAR(10)", "VARCHAR(50)"))
	assert.True(t, IsSafeWidening("VARCHAR(10)", "TEXT"))
	assert.False(t, IsSafeWidening("BIGINT", "INTEGER"))
	assert.False(t, IsSafeWidening("TEXT", "INTEGER"))
	assert.True(t, IsSafeWidening("NUMERIC(10,2)", "NUMERIC(12,2)"))
	assert.True(t, IsSafeWidening("NUMERIC(10,2)", "NUMERIC(10,4)"))
	assert.True(t, IsSafeWidening("NUMERIC(10)", "NUMERIC(10,2)"))
	assert.False(t, IsSafeWidening("NUMERIC(10,2)", "NUMERIC(10,1)"))
	assert.False(t, IsSafeWidening("NUMERIC(10,2)", "NUMERIC(8,2)"))
}

func TestComputeIndexAndConstraintChanges(t *testing.T) {
	current := schema.New("public")
	ct := table("users", col("id", "INTEGER", false), col("email", "TEXT", true))
	current.AddTable(ct)

	desired := schema.New("public")
	dt := table("users", col("id", "INTEGER", false), col("email", "TEXT", true))
	dt.Indexes["users_email_idx"] = &schema.Index{Name: "users_email_idx", Columns: []string{"email"}, Unique: true}
	desired.AddTable(dt)

	d := Compute(current, desired)
	require.Len(t, d.ModifiedTables, 1)
	assert.Len(t, d.ModifiedTables[0].AddedIndexes, 1)
}
