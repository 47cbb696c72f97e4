// SPDX-License-Identifier: Apache-2.0

package sqlgen

import (
	"fmt"

	"github.com/pgforge/pgforge/pkg/diff"
	"github.com/pgforge/pgforge/pkg/schema"
)

// HeaderComment is prepended to every rendered migration.
const HeaderComment = "-- generated by pgforge\n"

// Render joins statements into migration file text, preceded by
// HeaderComment and a blank line: each statement is followed by `;` and a
// single newline.
func Render(stmts []Statement) string {
	var b []byte
	b = append(b, HeaderComment...)
	b = append(b, '\n')
	for _, s := range stmts {
		b = append(b, s.SQL...)
		b = append(b, ";\n"...)
	}
	return string(b)
}

// Generate renders a diff into the ordered sequence of DDL statements that
// turn the current schema into the desired one.
//
// Foreign keys are dropped before anything else and (re)added only after
// every other change has landed. That sidesteps any need to topologically
// sort table creation/drop order by FK dependency: a new table's own
// foreign keys are deferred to the final step, so two new tables that
// reference each other can be created in any order.
func Generate(d *diff.Diff) []Statement {
	var stmts []Statement

	for _, td := range d.ModifiedTables {
		for _, dc := range td.DroppedConstraints {
			if dc.Kind == schema.ForeignKeyConstraint {
				stmts = append(stmts, Statement{
					SQL:  fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", quoteIdent(td.Table), quoteIdent(dc.Name)),
					Step: StepDropForeignKeys,
				})
			}
		}
	}

	for _, td := range d.ModifiedTables {
		for _, name := range td.DroppedIndexes {
			stmts = append(stmts, Statement{
				SQL:  fmt.Sprintf("DROP INDEX %s", quoteIdent(name)),
				Step: StepDropIndexes,
			})
		}
	}

	for _, name := range d.DroppedTables {
		stmts = append(stmts, Statement{
			SQL:  fmt.Sprintf("DROP TABLE %s", quoteIdent(name)),
			Step: StepDropTables,
		})
	}

	for _, t := range d.AddedTables {
		stmts = append(stmts, Statement{SQL: createTableSQL(t), Step: StepCreateTables})
		for _, name := range schema.SortedKeys(t.Indexes) {
			stmts = append(stmts, Statement{SQL: indexDefSQL(t.Name, t.Indexes[name]), Step: StepCreateTables})
		}
	}

	for _, td := range d.ModifiedTables {
		stmts = append(stmts, alterTableStatements(td)...)
	}

	for _, t := range d.AddedTables {
		for _, name := range schema.SortedKeys(t.Constraints) {
			c := t.Constraints[name]
			if c.Kind != schema.ForeignKeyConstraint {
				continue
			}
			stmts = append(stmts, Statement{
				SQL:  fmt.Sprintf("ALTER TABLE %s ADD %s", quoteIdent(t.Name), constraintDefSQL(c)),
				Step: StepAddForeignKeys,
			})
		}
	}
	for _, td := range d.ModifiedTables {
		for _, c := range td.AddedConstraints {
			if c.Kind != schema.ForeignKeyConstraint {
				continue
			}
			stmts = append(stmts, Statement{
				SQL:  fmt.Sprintf("ALTER TABLE %s ADD %s", quoteIdent(td.Table), constraintDefSQL(c)),
				Step: StepAddForeignKeys,
			})
		}
	}

	return stmts
}

// createTableSQL renders a full CREATE TABLE, including every non-foreign-key
// constraint inline (primary key, unique, check). Foreign keys are added
// separately in the final generation step.
func createTableSQL(t *schema.Table) string {
	var items []string
	for pair := t.Columns.Oldest(); pair != nil; pair = pair.Next() {
		items = append(items, columnDefSQL(pair.Value))
	}
	for _, name := range schema.SortedKeys(t.Constraints) {
		c := t.Constraints[name]
		if c.Kind == schema.ForeignKeyConstraint {
			continue
		}
		items = append(items, constraintDefSQL(c))
	}

	sql := fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", quoteIdent(t.Name), joinIndented(items))
	return sql
}

func joinIndented(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ",\n    "
		}
		out += item
	}
	return out
}

// alterTableStatements renders every non-foreign-key change to an existing
// table: dropped columns, added/modified columns, comment changes, and
// non-FK constraint changes. Dropped FKs and dropped indexes were already
// emitted in earlier steps; new FKs are emitted in the final step.
func alterTableStatements(td *diff.TableDiff) []Statement {
	var stmts []Statement
	table := quoteIdent(td.Table)

	for _, dc := range td.DroppedConstraints {
		if dc.Kind == schema.ForeignKeyConstraint {
			continue // already dropped in step 1
		}
		stmts = append(stmts, Statement{
			SQL:  fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", table, quoteIdent(dc.Name)),
			Step: StepAlterTables,
		})
	}

	for _, name := range td.DroppedColumns {
		stmts = append(stmts, Statement{
			SQL:  fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table, quoteIdent(name)),
			Step: StepAlterTables,
		})
	}

	for _, c := range td.AddedColumns {
		stmts = append(stmts, Statement{
			SQL:  fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, columnDefSQL(c)),
			Step: StepAlterTables,
		})
	}

	for _, cd := range td.ModifiedColumns {
		stmts = append(stmts, columnAlterStatements(td.Table, table, cd)...)
	}

	for _, name := range td.AddedIndexes {
		stmts = append(stmts, Statement{SQL: indexDefSQL(td.Table, name), Step: StepAlterTables})
	}

	for _, c := range td.AddedConstraints {
		if c.Kind == schema.ForeignKeyConstraint {
			continue // emitted in the final step
		}
		stmts = append(stmts, Statement{
			SQL:  fmt.Sprintf("ALTER TABLE %s ADD %s", table, constraintDefSQL(c)),
			Step: StepAlterTables,
		})
	}

	if td.CommentChanged {
		stmts = append(stmts, Statement{
			SQL:  fmt.Sprintf("COMMENT ON TABLE %s IS %s", table, pqQuoteLiteral(td.NewComment)),
			Step: StepAlterTables,
		})
	}

	return stmts
}

func columnAlterStatements(tableName, table string, cd *diff.ColumnDiff) []Statement {
	var stmts []Statement
	col := quoteIdent(cd.Name)

	if cd.TypeChanged {
		sql := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", table, col, cd.Desired.Type)
		if !cd.SafeWidening {
			sql += fmt.Sprintf(" USING %s::%s", col, cd.Desired.Type)
		}
		stmts = append(stmts, Statement{SQL: sql, Step: StepAlterTables})
	}

	if cd.NullableChanged {
		if cd.Desired.Nullable {
			stmts = append(stmts, Statement{SQL: fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", table, col), Step: StepAlterTables})
		} else {
			stmts = append(stmts, Statement{SQL: fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", table, col), Step: StepAlterTables})
		}
	}

	if cd.DefaultChanged {
		if d, err := cd.Desired.Default.Get(); err == nil {
			stmts = append(stmts, Statement{SQL: fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", table, col, d), Step: StepAlterTables})
		} else {
			stmts = append(stmts, Statement{SQL: fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", table, col), Step: StepAlterTables})
		}
	}

	if cd.PrimaryKeyChanged {
		pkeyName := quoteIdent(tableName + "_pkey")
		if cd.Desired.PrimaryKey {
			stmts = append(stmts, Statement{
				SQL:  fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)", table, pkeyName, col),
				Step: StepAlterTables,
			})
		} else {
			stmts = append(stmts, Statement{
				SQL:  fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", table, pkeyName),
				Step: StepAlterTables,
			})
		}
	}

	return stmts
}
