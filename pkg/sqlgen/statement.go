// SPDX-License-Identifier: Apache-2.0

// Package sqlgen turns a diff.Diff into an ordered list of DDL statements:
// drop foreign keys, drop indexes, drop tables, create tables, alter
// existing tables, then add new foreign keys.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/pgforge/pgforge/pkg/schema"
)

// Statement is one generated DDL statement, tagged with the step it belongs
// to so a caller can group or explain a migration plan.
type Statement struct {
	SQL  string
	Step Step
}

// Step is the generation phase a Statement was emitted in, in the fixed
// dependency-respecting order Generate always produces.
type Step int

const (
	StepDropForeignKeys Step = iota
	StepDropIndexes
	StepDropTables
	StepCreateTables
	StepAlterTables
	StepAddForeignKeys
)

func quoteIdent(s string) string { return pq.QuoteIdentifier(s) }

func pqQuoteLiteral(s string) string { return pq.QuoteLiteral(s) }

func quoteQualifiedIdent(parts ...string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = quoteIdent(p)
	}
	return strings.Join(quoted, ".")
}

// columnDefSQL renders a column definition for use inside a CREATE TABLE or
// an ALTER TABLE ... ADD COLUMN.
func columnDefSQL(c *schema.Column) string {
	var b strings.Builder
	b.WriteString(quoteIdent(c.Name))
	b.WriteByte(' ')
	b.WriteString(c.Type)
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if d, err := c.Default.Get(); err == nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(d)
	}
	return b.String()
}

// constraintDefSQL renders a table-level constraint for use inside a CREATE
// TABLE or an ALTER TABLE ... ADD CONSTRAINT.
func constraintDefSQL(c *schema.Constraint) string {
	var b strings.Builder
	b.WriteString("CONSTRAINT ")
	b.WriteString(quoteIdent(c.Name))
	b.WriteByte(' ')

	switch c.Kind {
	case schema.PrimaryKeyConstraint:
		fmt.Fprintf(&b, "PRIMARY KEY (%s)", quotedColumnList(c.Columns))
	case schema.UniqueConstraint:
		fmt.Fprintf(&b, "UNIQUE (%s)", quotedColumnList(c.Columns))
	case schema.CheckConstraint:
		fmt.Fprintf(&b, "CHECK (%s)", c.Check)
	case schema.ForeignKeyConstraint:
		fmt.Fprintf(&b, "FOREIGN KEY (%s) REFERENCES %s (%s)",
			quotedColumnList(c.Columns), quoteIdent(c.Reference.Table), quotedColumnList(c.Reference.Columns))
		if c.Reference.OnDelete != "" {
			b.WriteString(" ON DELETE ")
			b.WriteString(c.Reference.OnDelete)
		}
		if c.Reference.OnUpdate != "" {
			b.WriteString(" ON UPDATE ")
			b.WriteString(c.Reference.OnUpdate)
		}
	}
	return b.String()
}

func quotedColumnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

func indexDefSQL(table string, idx *schema.Index) string {
	kw := "INDEX"
	if idx.Unique {
		kw = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s %s ON %s (%s)", kw, quoteIdent(idx.Name), quoteIdent(table), quotedColumnList(idx.Columns))
}
