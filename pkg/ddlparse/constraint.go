// SPDX-License-Identifier: Apache-2.0

package ddlparse

import (
	"fmt"
	"strings"

	"github.com/pgforge/pgforge/pkg/schema"
)

// isConstraintItem reports whether a CREATE TABLE body item is a table-level
// constraint rather than a column definition, by its leading keyword.
func isConstraintItem(item string) bool {
	up := strings.ToUpper(strings.TrimSpace(item))
	for _, kw := range []string{"PRIMARY", "FOREIGN", "UNIQUE", "CHECK", "CONSTRAINT"} {
		if !strings.HasPrefix(up, kw) {
			continue
		}
		// The keyword must be a whole word: "checksum" or "unique_code" is a
		// column name, not a constraint.
		rest := up[len(kw):]
		if rest == "" {
			return true
		}
		if c := rest[0]; !(c == '_' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return true
		}
	}
	return false
}

// constraintNamer hands out Postgres's default constraint-naming convention
// for unnamed inline/table constraints, so names line up with what
// introspection reads back from pg_catalog.
type constraintNamer struct {
	table      string
	checkSeq   int
	seenChecks map[string]bool
}

func newConstraintNamer(table string) *constraintNamer {
	return &constraintNamer{table: table, seenChecks: make(map[string]bool)}
}

func (n *constraintNamer) primaryKey() string {
	return n.table + "_pkey"
}

func (n *constraintNamer) unique(cols []string) string {
	return n.table + "_" + strings.Join(cols, "_") + "_key"
}

func (n *constraintNamer) foreignKey(cols []string) string {
	return n.table + "_" + strings.Join(cols, "_") + "_fkey"
}

func (n *constraintNamer) check() string {
	name := n.table + "_check"
	if n.checkSeq > 0 {
		name = fmt.Sprintf("%s_check%d", n.table, n.checkSeq)
	}
	n.checkSeq++
	return name
}

// parseConstraintItem parses a table-level constraint item, named or not:
// `PRIMARY KEY (a, b)`, `UNIQUE (x)`, `CHECK (price > 0)`,
// `FOREIGN KEY (x) REFERENCES y(z) ON DELETE CASCADE`, or the `CONSTRAINT
// name ...` form of any of these.
func parseConstraintItem(item string, namer *constraintNamer) (*schema.Constraint, error) {
	toks := tokenize(item)
	if len(toks) == 0 {
		return nil, &ParseError{Reason: "empty constraint item"}
	}

	idx := 0
	var explicitName string
	if strings.EqualFold(toks[idx], "CONSTRAINT") {
		if idx+1 >= len(toks) {
			return nil, &ParseError{Reason: "CONSTRAINT without a name: " + item}
		}
		explicitName = unquoteIdent(toks[idx+1])
		idx += 2
	}
	if idx >= len(toks) {
		return nil, &ParseError{Reason: "empty constraint body: " + item}
	}

	switch strings.ToUpper(toks[idx]) {
	case "PRIMARY":
		cols := constraintColumnList(toks, idx+2)
		name := explicitName
		if name == "" {
			name = namer.primaryKey()
		}
		return &schema.Constraint{Name: name, Kind: schema.PrimaryKeyConstraint, Columns: cols}, nil

	case "UNIQUE":
		cols := constraintColumnList(toks, idx+1)
		name := explicitName
		if name == "" {
			name = namer.unique(cols)
		}
		return &schema.Constraint{Name: name, Kind: schema.UniqueConstraint, Columns: cols}, nil

	case "CHECK":
		expr := ""
		if idx+1 < len(toks) {
			expr = trimParens(toks[idx+1])
		}
		name := explicitName
		if name == "" {
			name = namer.check()
		}
		return &schema.Constraint{Name: name, Kind: schema.CheckConstraint, Check: expr}, nil

	case "FOREIGN":
		// FOREIGN KEY ( cols ) REFERENCES table [ (cols) ] [ON ...]
		colsIdx := idx + 2
		cols := constraintColumnList(toks, colsIdx)
		refIdx := colsIdx + 1
		if refIdx < len(toks) && strings.EqualFold(toks[refIdx], "REFERENCES") {
			refIdx++
		}
		ref, _ := parseInlineReference(toks, refIdx)
		name := explicitName
		if name == "" {
			name = namer.foreignKey(cols)
		}
		return &schema.Constraint{Name: name, Kind: schema.ForeignKeyConstraint, Columns: cols, Reference: ref}, nil

	default:
		return nil, &ParseError{Reason: "unrecognized constraint: " + item}
	}
}

// constraintColumnList reads the parenthesized column list starting at
// toks[idx], e.g. for `PRIMARY KEY (a, b)` idx points at `(a,` after "PRIMARY
// KEY".
func constraintColumnList(toks []string, idx int) []string {
	if idx >= len(toks) || !strings.HasPrefix(toks[idx], "(") {
		return nil
	}
	var cols []string
	for _, c := range SplitTopLevelCommas(trimParens(toks[idx])) {
		cols = append(cols, unquoteIdent(c))
	}
	return cols
}
