// SPDX-License-Identifier: Apache-2.0

package ddlparse

import (
	"testing"

	"github.com/pgforge/pgforge/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatementsRespectsQuotesAndComments(t *testing.T) {
	text := `
CREATE TABLE a (id INTEGER); -- comment; with a semicolon
CREATE TABLE b (name TEXT DEFAULT 'semi;colon');
`
	stmts := SplitStatements(text)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0].Text, "CREATE TABLE a")
	assert.Contains(t, stmts[1].Text, "semi;colon")
}

func TestParseSimpleTable(t *testing.T) {
	sch, warnings, err := Parse(`
CREATE TABLE users (
    id INTEGER PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP DEFAULT NOW()
);
`)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	users := sch.GetTable("users")
	require.NotNil(t, users)

	id := users.GetColumn("id")
	require.NotNil(t, id)
	assert.Equal(t, "INTEGER", id.Type)
	assert.True(t, id.PrimaryKey)
	assert.False(t, id.Nullable)

	email := users.GetColumn("email")
	require.NotNil(t, email)
	assert.False(t, email.Nullable)

	created := users.GetColumn("created_at")
	require.NotNil(t, created)
	require.True(t, created.Default.IsSpecified())
	defaultVal, err := created.Default.Get()
	require.NoError(t, err)
	assert.Equal(t, "now()", defaultVal)

	pk := users.PrimaryKeyConstraintFor()
	require.NotNil(t, pk)
	assert.Equal(t, []string{"id"}, pk.Columns)

	var foundUnique bool
	for _, c := range users.Constraints {
		if c.Kind == schema.UniqueConstraint {
			foundUnique = true
			assert.Equal(t, []string{"email"}, c.Columns)
		}
	}
	assert.True(t, foundUnique)
}

func TestParseForeignKeyAndIndex(t *testing.T) {
	sch, warnings, err := Parse(`
CREATE TABLE orders (
    id INTEGER PRIMARY KEY,
    user_id INTEGER REFERENCES users(id) ON DELETE CASCADE
);
CREATE INDEX idx_orders_user_id ON orders (user_id);
`)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	orders := sch.GetTable("orders")
	require.NotNil(t, orders)

	var found bool
	for _, c := range orders.Constraints {
		if c.Reference != nil {
			found = true
			assert.Equal(t, "users", c.Reference.Table)
			assert.Equal(t, []string{"id"}, c.Reference.Columns)
			assert.Equal(t, "CASCADE", c.Reference.OnDelete)
		}
	}
	assert.True(t, found)

	idx, ok := orders.Indexes["idx_orders_user_id"]
	require.True(t, ok)
	assert.Equal(t, []string{"user_id"}, idx.Columns)
	assert.False(t, idx.Unique)
}

func TestParseIndexOnUnknownTableWarns(t *testing.T) {
	_, warnings, err := Parse(`CREATE INDEX idx_x ON ghost (a);`)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "unknown table")
}

func TestParseAlterTableAddAndDropColumn(t *testing.T) {
	sch, warnings, err := Parse(`
CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT);
ALTER TABLE widgets ADD COLUMN price NUMERIC(10,2) NOT NULL DEFAULT 0;
ALTER TABLE widgets DROP COLUMN name;
`)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	w := sch.GetTable("widgets")
	require.NotNil(t, w)
	assert.Nil(t, w.GetColumn("name"))

	price := w.GetColumn("price")
	require.NotNil(t, price)
	assert.Equal(t, "NUMERIC(10,2)", price.Type)
	assert.False(t, price.Nullable)
}

func TestParseUnrecognizedStatementWarns(t *testing.T) {
	sch, warnings, err := Parse(`CREATE TABLE t (id INTEGER); CREATE SEQUENCE s;`)
	require.NoError(t, err)
	require.NotNil(t, sch.GetTable("t"))
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "unrecognized")
}

func TestParseTableLevelPrimaryKeyAndCheck(t *testing.T) {
	sch, _, err := Parse(`
CREATE TABLE items (
    a INTEGER,
    b INTEGER,
    price NUMERIC CHECK (price > 0),
    PRIMARY KEY (a, b)
);
`)
	require.NoError(t, err)
	items := sch.GetTable("items")
	require.NotNil(t, items)

	pk := items.PrimaryKeyConstraintFor()
	require.NotNil(t, pk)
	assert.ElementsMatch(t, []string{"a", "b"}, pk.Columns)
	assert.True(t, items.GetColumn("a").PrimaryKey)
	assert.True(t, items.GetColumn("b").PrimaryKey)
	assert.False(t, items.GetColumn("price").PrimaryKey)

	var checkCount int
	for _, c := range items.Constraints {
		if c.Check != "" {
			checkCount++
			assert.Equal(t, "price > 0", c.Check)
		}
	}
	assert.Equal(t, 1, checkCount)
}
