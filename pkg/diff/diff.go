// SPDX-License-Identifier: Apache-2.0

// Package diff computes the structural difference between a current
// (introspected) and desired (parsed) schema.Schema: which tables, columns,
// indexes and constraints were added, dropped or modified.
package diff

import (
	"fmt"

	"github.com/oapi-codegen/nullable"

	"github.com/pgforge/pgforge/pkg/schema"
)

// Severity classifies a Warning by how much caution it warrants.
type Severity string

const (
	SeverityInfo        Severity = "info"
	SeverityDestructive Severity = "destructive"
)

// Warning is a non-fatal observation about a computed diff: a dropped
// table/column (possible data loss), a narrowing type change, or similar.
type Warning struct {
	Table    string
	Message  string
	Severity Severity
}

// Diff is the full set of changes between a current and desired schema.
type Diff struct {
	AddedTables    []*schema.Table
	DroppedTables  []string
	ModifiedTables []*TableDiff
	Warnings       []Warning
}

// IsEmpty reports whether the diff contains no changes at all.
func (d *Diff) IsEmpty() bool {
	return len(d.AddedTables) == 0 && len(d.DroppedTables) == 0 && len(d.ModifiedTables) == 0
}

// HasDestructiveChanges reports whether applying this diff could discard
// data: dropped tables, dropped columns, or a warning
// explicitly flagged destructive.
func (d *Diff) HasDestructiveChanges() bool {
	if len(d.DroppedTables) > 0 {
		return true
	}
	for _, td := range d.ModifiedTables {
		if len(td.DroppedColumns) > 0 {
			return true
		}
	}
	for _, w := range d.Warnings {
		if w.Severity == SeverityDestructive {
			return true
		}
	}
	return false
}

// TableDiff is the set of changes within one existing table.
type TableDiff struct {
	Table string

	AddedColumns    []*schema.Column
	DroppedColumns  []string
	ModifiedColumns []*ColumnDiff

	AddedIndexes   []*schema.Index
	DroppedIndexes []string

	AddedConstraints   []*schema.Constraint
	DroppedConstraints []DroppedConstraint

	CommentChanged bool
	NewComment     string
}

// IsEmpty reports whether this table has no pending changes.
func (td *TableDiff) IsEmpty() bool {
	return len(td.AddedColumns) == 0 && len(td.DroppedColumns) == 0 && len(td.ModifiedColumns) == 0 &&
		len(td.AddedIndexes) == 0 && len(td.DroppedIndexes) == 0 &&
		len(td.AddedConstraints) == 0 && len(td.DroppedConstraints) == 0 &&
		!td.CommentChanged
}

// DroppedConstraint names a constraint being removed along with its kind,
// since the generator needs to drop foreign keys before tables but a bare
// name can't tell a dropped FK from a dropped check.
type DroppedConstraint struct {
	Name string
	Kind schema.ConstraintKind
}

// ColumnDiff is a single column whose definition changed between current
// and desired.
type ColumnDiff struct {
	Name    string
	Current *schema.Column
	Desired *schema.Column

	TypeChanged       bool
	SafeWidening      bool
	NullableChanged   bool
	DefaultChanged    bool
	PrimaryKeyChanged bool
}

// Compute returns the diff required to turn current into desired. It is a
// pure function: no I/O, no ordering concerns (that's pkg/sqlgen's job).
func Compute(current, desired *schema.Schema) *Diff {
	d := &Diff{}

	for _, name := range desired.SortedTableNames() {
		dt := desired.GetTable(name)
		ct := current.GetTable(name)
		if ct == nil {
			d.AddedTables = append(d.AddedTables, dt)
			continue
		}
		td := compareTables(ct, dt, &d.Warnings)
		if !td.IsEmpty() {
			d.ModifiedTables = append(d.ModifiedTables, td)
		}
	}

	for _, name := range current.SortedTableNames() {
		if desired.GetTable(name) == nil {
			d.DroppedTables = append(d.DroppedTables, name)
			d.Warnings = append(d.Warnings, Warning{
				Table:    name,
				Message:  fmt.Sprintf("table %q is dropped; all of its data will be lost", name),
				Severity: SeverityDestructive,
			})
		}
	}

	return d
}

func compareTables(current, desired *schema.Table, warnings *[]Warning) *TableDiff {
	td := &TableDiff{Table: desired.Name}

	for _, name := range desired.ColumnNames() {
		dc := desired.GetColumn(name)
		cc := current.GetColumn(name)
		if cc == nil {
			td.AddedColumns = append(td.AddedColumns, dc)
			if !dc.Nullable && !dc.Default.IsSpecified() {
				*warnings = append(*warnings, Warning{
					Table:    desired.Name,
					Message:  fmt.Sprintf("column %q.%q is NOT NULL with no default; adding it to a non-empty table will fail", desired.Name, name),
					Severity: SeverityDestructive,
				})
			}
			continue
		}
		if cd := compareColumns(cc, dc); cd != nil {
			td.ModifiedColumns = append(td.ModifiedColumns, cd)
			if cd.TypeChanged && !cd.SafeWidening {
				*warnings = append(*warnings, Warning{
					Table:    desired.Name,
					Message:  fmt.Sprintf("column %q.%q changes type from %s to %s, which is not a safe widening", desired.Name, name, cc.Type, dc.Type),
					Severity: SeverityDestructive,
				})
			}
		}
	}
	for _, name := range current.ColumnNames() {
		if desired.GetColumn(name) == nil {
			td.DroppedColumns = append(td.DroppedColumns, name)
			*warnings = append(*warnings, Warning{
				Table:    desired.Name,
				Message:  fmt.Sprintf("column %q.%q is dropped; its data will be lost", desired.Name, name),
				Severity: SeverityDestructive,
			})
		}
	}

	for name, di := range desired.Indexes {
		if ci, ok := current.Indexes[name]; !ok || !indexEqual(ci, di) {
			if ok {
				td.DroppedIndexes = append(td.DroppedIndexes, name)
			}
			td.AddedIndexes = append(td.AddedIndexes, di)
		}
	}
	for name := range current.Indexes {
		if _, ok := desired.Indexes[name]; !ok {
			td.DroppedIndexes = append(td.DroppedIndexes, name)
		}
	}

	for name, dc := range desired.Constraints {
		if cc, ok := current.Constraints[name]; !ok || !constraintEqual(cc, dc) {
			if ok {
				td.DroppedConstraints = append(td.DroppedConstraints, DroppedConstraint{Name: name, Kind: cc.Kind})
			}
			td.AddedConstraints = append(td.AddedConstraints, dc)
		}
	}
	for name, cc := range current.Constraints {
		if _, ok := desired.Constraints[name]; !ok {
			td.DroppedConstraints = append(td.DroppedConstraints, DroppedConstraint{Name: name, Kind: cc.Kind})
		}
	}

	if current.Comment != desired.Comment {
		td.CommentChanged = true
		td.NewComment = desired.Comment
	}

	return td
}

func compareColumns(current, desired *schema.Column) *ColumnDiff {
	typeChanged := current.Type != desired.Type
	nullableChanged := current.Nullable != desired.Nullable
	defaultChanged := !defaultsEqual(current.Default, desired.Default)
	primaryKeyChanged := current.PrimaryKey != desired.PrimaryKey

	if !typeChanged && !nullableChanged && !defaultChanged && !primaryKeyChanged {
		return nil
	}

	return &ColumnDiff{
		Name:              desired.Name,
		Current:           current,
		Desired:           desired,
		TypeChanged:       typeChanged,
		SafeWidening:      typeChanged && IsSafeWidening(current.Type, desired.Type),
		NullableChanged:   nullableChanged,
		DefaultChanged:    defaultChanged,
		PrimaryKeyChanged: primaryKeyChanged,
	}
}

func defaultsEqual(a, b nullable.Nullable[string]) bool {
	if a.IsSpecified() != b.IsSpecified() {
		return false
	}
	if !a.IsSpecified() {
		return true
	}
	av, _ := a.Get()
	bv, _ := b.Get()
	return av == bv
}

func indexEqual(a, b *schema.Index) bool {
	if a.Unique != b.Unique || len(a.Columns) != len(b.Columns) {
		return false
	}
	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			return false
		}
	}
	return true
}

func constraintEqual(a, b *schema.Constraint) bool {
	if a.Kind != b.Kind || a.Check != b.Check || len(a.Columns) != len(b.Columns) {
		return false
	}
	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			return false
		}
	}
	if (a.Reference == nil) != (b.Reference == nil) {
		return false
	}
	if a.Reference != nil {
		ra, rb := a.Reference, b.Reference
		if ra.Table != rb.Table || ra.OnDelete != rb.OnDelete || ra.OnUpdate != rb.OnUpdate || len(ra.Columns) != len(rb.Columns) {
			return false
		}
		for i := range ra.Columns {
			if ra.Columns[i] != rb.Columns[i] {
				return false
			}
		}
	}
	return true
}
