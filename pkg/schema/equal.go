// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/oapi-codegen/nullable"
)

// flatTable is the order-aware flattening of a Table used for structural
// comparisons: orderedmap.OrderedMap carries internal bookkeeping pointers
// that aren't meaningful to compare directly, so we pull out a column-name
// slice (declaration order matters) plus a lookup map (order doesn't).
type flatTable struct {
	Name        string
	Comment     string
	ColumnNames []string
	Columns     map[string]*Column
	Indexes     map[string]*Index
	Constraints map[string]*Constraint
}

func flatten(t *Table) flatTable {
	cols := make(map[string]*Column, t.Columns.Len())
	names := make([]string, 0, t.Columns.Len())
	for pair := t.Columns.Oldest(); pair != nil; pair = pair.Next() {
		cols[pair.Key] = pair.Value
		names = append(names, pair.Key)
	}
	return flatTable{
		Name:        t.Name,
		Comment:     t.Comment,
		ColumnNames: names,
		Columns:     cols,
		Indexes:     t.Indexes,
		Constraints: t.Constraints,
	}
}

func cmpOpts() []cmp.Option {
	return []cmp.Option{
		cmp.Comparer(func(a, b nullable.Nullable[string]) bool {
			if a.IsSpecified() != b.IsSpecified() {
				return false
			}
			av, _ := a.Get()
			bv, _ := b.Get()
			return av == bv
		}),
	}
}

// EqualTables reports whether two tables are structurally equal, respecting
// column order but not index/constraint order.
func EqualTables(a, b *Table) bool {
	if a == nil || b == nil {
		return a == b
	}
	return cmp.Equal(flatten(a), flatten(b), cmpOpts()...)
}

// Equal reports whether two schemas are structurally equal: same tables (by
// name, order-independent), each compared with EqualTables. This backs the
// "round-trip" and "diff identity" testable properties of §8.
func Equal(a, b *Schema) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Tables) != len(b.Tables) {
		return false
	}
	for name, ta := range a.Tables {
		tb, ok := b.Tables[name]
		if !ok || !EqualTables(ta, tb) {
			return false
		}
	}
	return true
}

// Diff returns a human-readable diff between two schemas, useful in test
// failure output.
func Diff(a, b *Schema) string {
	af := make(map[string]flatTable, len(a.Tables))
	for k, v := range a.Tables {
		af[k] = flatten(v)
	}
	bf := make(map[string]flatTable, len(b.Tables))
	for k, v := range b.Tables {
		bf[k] = flatten(v)
	}
	return cmp.Diff(af, bf, cmpOpts()...)
}

// SortedKeys returns the keys of a map in ascending order. Shared by every
// component that needs deterministic map iteration (differ, generator).
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
