// SPDX-License-Identifier: Apache-2.0

// Package introspect reads the live shape of a PostgreSQL schema out of
// pg_catalog and produces a schema.Schema, the same shape pkg/ddlparse
// produces from a DDL file.
package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/oapi-codegen/nullable"

	"github.com/pgforge/pgforge/pkg/schema"
)

// IntrospectionError wraps a failure encountered while reading the live
// schema, identifying which catalog query it happened during.
type IntrospectionError struct {
	Stage string
	Err   error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("introspect: %s: %v", e.Stage, e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }

// Introspector reads a schema's current state from a live database.
type Introspector struct {
	db *sql.DB
}

// New returns an Introspector reading through db.
func New(db *sql.DB) *Introspector {
	return &Introspector{db: db}
}

// Introspect captures the current state of schemaName as a schema.Schema.
// It runs entirely inside one REPEATABLE READ read-only transaction so every
// catalog query observes the same snapshot.
func (in *Introspector) Introspect(ctx context.Context, schemaName string) (*schema.Schema, error) {
	tx, err := in.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, &IntrospectionError{Stage: "begin transaction", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck // read-only tx, nothing to lose on rollback

	sch := schema.New(schemaName)
	sch.Version = "introspected"
	sch.CapturedAt = time.Now()

	if err := loadTables(ctx, tx, schemaName, sch); err != nil {
		return nil, err
	}
	if err := loadColumns(ctx, tx, schemaName, sch); err != nil {
		return nil, err
	}
	if err := loadConstraints(ctx, tx, schemaName, sch); err != nil {
		return nil, err
	}
	if err := loadIndexes(ctx, tx, schemaName, sch); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, &IntrospectionError{Stage: "commit", Err: err}
	}
	return sch, nil
}

func loadTables(ctx context.Context, tx *sql.Tx, schemaName string, sch *schema.Schema) error {
	rows, err := tx.QueryContext(ctx, tablesQuery, schemaName)
	if err != nil {
		return &IntrospectionError{Stage: "list tables", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var comment sql.NullString
		if err := rows.Scan(&name, &comment); err != nil {
			return &IntrospectionError{Stage: "scan table", Err: err}
		}
		t := schema.NewTable(name)
		t.Comment = comment.String
		sch.AddTable(t)
	}
	if err := rows.Err(); err != nil {
		return &IntrospectionError{Stage: "list tables", Err: err}
	}
	return nil
}

func loadColumns(ctx context.Context, tx *sql.Tx, schemaName string, sch *schema.Schema) error {
	rows, err := tx.QueryContext(ctx, columnsQuery, schemaName)
	if err != nil {
		return &IntrospectionError{Stage: "list columns", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, colName, rawType string
		var notNull bool
		var rawDefault sql.NullString
		if err := rows.Scan(&tableName, &colName, &rawType, &notNull, &rawDefault); err != nil {
			return &IntrospectionError{Stage: "scan column", Err: err}
		}
		table := sch.GetTable(tableName)
		if table == nil {
			continue // table filtered out between queries (e.g. dropped concurrently); ignore
		}
		col := &schema.Column{
			Name:     colName,
			Type:     schema.NormalizeType(rawType),
			Nullable: !notNull,
		}
		if rawDefault.Valid {
			col.Default = nullable.NewNullableWithValue(schema.NormalizeDefault(rawDefault.String))
		}
		table.AddColumn(col)
	}
	if err := rows.Err(); err != nil {
		return &IntrospectionError{Stage: "list columns", Err: err}
	}
	return nil
}

func loadConstraints(ctx context.Context, tx *sql.Tx, schemaName string, sch *schema.Schema) error {
	rows, err := tx.QueryContext(ctx, constraintsQuery, schemaName)
	if err != nil {
		return &IntrospectionError{Stage: "list constraints", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name, tableName          string
			contype                  string
			columns                  pq.StringArray
			definition               string
			refTable                 sql.NullString
			refColumns               pq.StringArray
			confupdtype, confdeltype sql.NullString
		)
		if err := rows.Scan(&name, &tableName, &contype, &columns, &definition, &refTable, &refColumns, &confupdtype, &confdeltype); err != nil {
			return &IntrospectionError{Stage: "scan constraint", Err: err}
		}
		table := sch.GetTable(tableName)
		if table == nil {
			continue
		}

		c := &schema.Constraint{Name: name, Columns: []string(columns)}
		switch contype {
		case "p":
			c.Kind = schema.PrimaryKeyConstraint
			for _, col := range c.Columns {
				if cc := table.GetColumn(col); cc != nil {
					cc.PrimaryKey = true
				}
			}
		case "u":
			c.Kind = schema.UniqueConstraint
		case "c":
			c.Kind = schema.CheckConstraint
			c.Check = extractCheckExpr(definition)
		case "f":
			c.Kind = schema.ForeignKeyConstraint
			c.Reference = &schema.ForeignKeyReference{
				Table:   refTable.String,
				Columns: []string(refColumns),
			}
			if confupdtype.Valid && len(confupdtype.String) == 1 {
				c.Reference.OnUpdate = fkActionNames[confupdtype.String[0]]
			}
			if confdeltype.Valid && len(confdeltype.String) == 1 {
				c.Reference.OnDelete = fkActionNames[confdeltype.String[0]]
			}
		default:
			continue
		}
		table.Constraints[name] = c
	}
	if err := rows.Err(); err != nil {
		return &IntrospectionError{Stage: "list constraints", Err: err}
	}
	return nil
}

func loadIndexes(ctx context.Context, tx *sql.Tx, schemaName string, sch *schema.Schema) error {
	rows, err := tx.QueryContext(ctx, indexesQuery, schemaName)
	if err != nil {
		return &IntrospectionError{Stage: "list indexes", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var indexName, tableName string
		var unique, primary bool
		var columns pq.StringArray
		if err := rows.Scan(&indexName, &tableName, &unique, &primary, &columns); err != nil {
			return &IntrospectionError{Stage: "scan index", Err: err}
		}
		table := sch.GetTable(tableName)
		if table == nil || primary {
			continue
		}
		table.Indexes[indexName] = &schema.Index{
			Name:    indexName,
			Columns: []string(columns),
			Unique:  unique,
		}
	}
	if err := rows.Err(); err != nil {
		return &IntrospectionError{Stage: "list indexes", Err: err}
	}
	return nil
}

// extractCheckExpr pulls the parenthesized expression out of a
// pg_get_constraintdef result like `CHECK ((price > (0)::numeric))`.
func extractCheckExpr(definition string) string {
	const prefix = "CHECK "
	if len(definition) <= len(prefix) {
		return definition
	}
	body := definition[len(prefix):]
	return trimOuterParens(body)
}

func trimOuterParens(s string) string {
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		depth := 0
		balanced := true
		for i, c := range s {
			switch c {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 && i != len(s)-1 {
					balanced = false
				}
			}
		}
		if !balanced {
			break
		}
		s = s[1 : len(s)-1]
	}
	return s
}
