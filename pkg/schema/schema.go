// SPDX-License-Identifier: Apache-2.0

// Package schema is the canonical in-memory representation of a PostgreSQL
// schema: tables, columns, indexes and constraints. It is the shape that
// both the DDL parser (pkg/ddlparse) and the live-database introspector
// (pkg/introspect) produce, and the shape the differ (pkg/diff) consumes.
package schema

import (
	"time"

	"github.com/oapi-codegen/nullable"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ConstraintKind is the kind of a table-level constraint.
type ConstraintKind string

const (
	PrimaryKeyConstraint ConstraintKind = "primary_key"
	ForeignKeyConstraint ConstraintKind = "foreign_key"
	UniqueConstraint     ConstraintKind = "unique"
	CheckConstraint      ConstraintKind = "check"
)

// Schema is an ordered set of tables, versioned by a capture tag.
type Schema struct {
	// Name is the database/search-path schema this was built from (e.g. "public").
	Name string

	// Version is a free-form tag identifying how the schema was produced,
	// e.g. "introspected" or the name of the desired-state file.
	Version string

	// CapturedAt is when the snapshot was taken. Zero for schemas parsed
	// from a DDL file, since they have no notion of "now".
	CapturedAt time.Time

	// Tables is keyed by table name. Table order is irrelevant for equality
	// (see Equal) but deterministic for emission (see SortedTableNames).
	Tables map[string]*Table
}

// Table is a single relation: an ordered list of columns, plus the sets of
// indexes and constraints defined on it.
type Table struct {
	Name    string
	Comment string

	// Columns preserves declared column order, since it matters for CREATE
	// TABLE emission and for a human reading a generated migration.
	Columns *orderedmap.OrderedMap[string, *Column]

	// Indexes excludes the primary-key-backing index; that's expressed via
	// the table's primary_key constraint instead.
	Indexes map[string]*Index

	Constraints map[string]*Constraint
}

// Column is a single column definition.
type Column struct {
	Name string

	// Type is the normalized, uppercase token sequence for the SQL type,
	// e.g. "INTEGER", "VARCHAR(255)", "NUMERIC(10,2)". See NormalizeType.
	Type string

	Nullable   bool
	PrimaryKey bool

	// Default is the normalized default-value expression text. Unspecified
	// when the column has no DEFAULT clause at all (DROP DEFAULT applies);
	// specified with value "NULL" when the column has an explicit DEFAULT
	// NULL clause (SET DEFAULT NULL applies) — these are different DDL
	// operations even though both leave new rows with a null value. See
	// NormalizeDefault.
	Default nullable.Nullable[string]
}

// Index is a non-primary-key index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Constraint is a table-level constraint: primary key, foreign key, unique
// or check.
type Constraint struct {
	Name    string
	Kind    ConstraintKind
	Columns []string

	// Check is the raw CHECK expression text. Only set when Kind == CheckConstraint.
	Check string

	// Reference describes what a foreign key points at. Only set when
	// Kind == ForeignKeyConstraint.
	Reference *ForeignKeyReference
}

// ForeignKeyReference describes the target side of a foreign key.
type ForeignKeyReference struct {
	Table    string
	Columns  []string
	OnDelete string
	OnUpdate string
}

// New returns an empty schema ready to have tables added to it.
func New(name string) *Schema {
	return &Schema{
		Name:   name,
		Tables: make(map[string]*Table),
	}
}

// NewTable returns an empty table ready to have columns added to it.
func NewTable(name string) *Table {
	return &Table{
		Name:        name,
		Columns:     orderedmap.New[string, *Column](),
		Indexes:     make(map[string]*Index),
		Constraints: make(map[string]*Constraint),
	}
}

// GetTable returns a table by name, or nil if it doesn't exist.
func (s *Schema) GetTable(name string) *Table {
	return s.Tables[name]
}

// AddTable adds or replaces a table in the schema.
func (s *Schema) AddTable(t *Table) {
	if s.Tables == nil {
		s.Tables = make(map[string]*Table)
	}
	s.Tables[t.Name] = t
}

// SortedTableNames returns table names in ascending order, for deterministic
// emission.
func (s *Schema) SortedTableNames() []string {
	return SortedKeys(s.Tables)
}

// GetColumn returns a column by name, or nil if it doesn't exist.
func (t *Table) GetColumn(name string) *Column {
	c, ok := t.Columns.Get(name)
	if !ok {
		return nil
	}
	return c
}

// AddColumn appends (or replaces, in place) a column on the table.
func (t *Table) AddColumn(c *Column) {
	t.Columns.Set(c.Name, c)
}

// ColumnNames returns column names in declared order.
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, t.Columns.Len())
	for pair := t.Columns.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// PrimaryKeyConstraintFor returns the table's primary-key constraint, if any.
func (t *Table) PrimaryKeyConstraintFor() *Constraint {
	for _, c := range t.Constraints {
		if c.Kind == PrimaryKeyConstraint {
			return c
		}
	}
	return nil
}
