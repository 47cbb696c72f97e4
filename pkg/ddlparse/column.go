// SPDX-License-Identifier: Apache-2.0

package ddlparse

import (
	"strings"

	"github.com/oapi-codegen/nullable"

	"github.com/pgforge/pgforge/pkg/schema"
)

// typeContinuations is the set of words that extend a preceding base type
// name into a multi-word SQL type, e.g. "DOUBLE PRECISION" or "TIMESTAMP
// WITH TIME ZONE".
var typeContinuations = map[string]bool{
	"PRECISION": true,
	"VARYING":   true,
	"WITH":      true,
	"WITHOUT":   true,
	"TIME":      true,
	"ZONE":      true,
}

var columnModifierKeywords = map[string]bool{
	"NOT": true, "NULL": true, "PRIMARY": true, "UNIQUE": true,
	"DEFAULT": true, "REFERENCES": true, "CHECK": true, "COLLATE": true,
	"GENERATED": true,
}

func isColumnModifierKeyword(tok string) bool {
	return columnModifierKeywords[strings.ToUpper(tok)]
}

// parsedColumn is an inline column item plus the table-level side effects
// its constraint-shaped modifiers (UNIQUE, REFERENCES, CHECK) imply.
type parsedColumn struct {
	Column          *schema.Column
	InlineUnique    bool
	InlineReference *schema.ForeignKeyReference
	InlineCheck     string
}

// parseColumnItem parses one non-constraint item from a CREATE TABLE body,
// e.g. `email TEXT NOT NULL` or `user_id INTEGER REFERENCES users(id)`.
func parseColumnItem(item string) (*parsedColumn, error) {
	toks := tokenize(item)
	if len(toks) < 2 {
		return nil, &ParseError{Reason: "column definition needs a name and a type: " + item}
	}

	name := unquoteIdent(toks[0])
	idx := 1

	typeStr, next := parseColumnType(toks, idx)
	idx = next

	col := &schema.Column{
		Name:     name,
		Type:     schema.NormalizeType(typeStr),
		Nullable: true,
	}
	if schema.IsSerialAlias(typeStr) {
		col.Default = nullable.NewNullableWithValue("nextval('" + name + "_seq'::regclass)")
	}

	pc := &parsedColumn{Column: col}

	for idx < len(toks) {
		up := strings.ToUpper(toks[idx])
		switch {
		case up == "NOT" && idx+1 < len(toks) && strings.EqualFold(toks[idx+1], "NULL"):
			col.Nullable = false
			idx += 2
		case up == "NULL":
			col.Nullable = true
			idx++
		case up == "PRIMARY" && idx+1 < len(toks) && strings.EqualFold(toks[idx+1], "KEY"):
			col.PrimaryKey = true
			col.Nullable = false
			idx += 2
		case up == "UNIQUE":
			pc.InlineUnique = true
			idx++
		case up == "DEFAULT":
			idx++
			start := idx
			for idx < len(toks) && !isColumnModifierKeyword(toks[idx]) {
				idx++
			}
			expr := schema.NormalizeDefault(strings.Join(toks[start:idx], " "))
			col.Default = nullable.NewNullableWithValue(expr)
		case up == "REFERENCES":
			idx++
			ref, nidx := parseInlineReference(toks, idx)
			pc.InlineReference = ref
			idx = nidx
		case up == "CHECK":
			idx++
			if idx < len(toks) {
				pc.InlineCheck = trimParens(toks[idx])
				idx++
			}
		case up == "COLLATE":
			idx += 2 // skip the collation name token
		case up == "GENERATED":
			// "GENERATED ALWAYS AS IDENTITY" and friends: the keyword is
			// skipped and the clause is not modeled (no default is set).
			idx++
		default:
			idx++
		}
	}

	return pc, nil
}

// parseColumnType consumes the base type token plus any continuation words
// and trailing parameter list starting at toks[idx], returning the raw type
// text and the next unconsumed index.
func parseColumnType(toks []string, idx int) (string, int) {
	if idx >= len(toks) {
		return "", idx
	}
	parts := []string{toks[idx]}
	idx++
	for idx < len(toks) && typeContinuations[strings.ToUpper(toks[idx])] {
		parts = append(parts, toks[idx])
		idx++
	}
	typeStr := strings.Join(parts, " ")
	if idx < len(toks) && strings.HasPrefix(toks[idx], "(") {
		typeStr += toks[idx]
		idx++
	}
	return typeStr, idx
}

// parseInlineReference parses the `table_name [(col)] [ON DELETE ...] [ON
// UPDATE ...]` tail of an inline REFERENCES clause.
func parseInlineReference(toks []string, idx int) (*schema.ForeignKeyReference, int) {
	if idx >= len(toks) {
		return nil, idx
	}
	ref := &schema.ForeignKeyReference{}

	tableTok := toks[idx]
	idx++
	if open := strings.IndexByte(tableTok, '('); open >= 0 {
		ref.Table = unquoteIdent(tableTok[:open])
		for _, c := range SplitTopLevelCommas(trimParens(tableTok[open:])) {
			ref.Columns = append(ref.Columns, unquoteIdent(c))
		}
	} else {
		ref.Table = unquoteIdent(tableTok)
		if idx < len(toks) && strings.HasPrefix(toks[idx], "(") {
			for _, c := range SplitTopLevelCommas(trimParens(toks[idx])) {
				ref.Columns = append(ref.Columns, unquoteIdent(c))
			}
			idx++
		}
	}

	for idx < len(toks) {
		up := strings.ToUpper(toks[idx])
		if up != "ON" {
			break
		}
		if idx+2 >= len(toks) {
			break
		}
		action := strings.ToUpper(toks[idx+1])
		value := strings.ToUpper(toks[idx+2])
		consumed := 3
		if value == "SET" && idx+3 < len(toks) {
			value = value + " " + strings.ToUpper(toks[idx+3])
			consumed = 4
		}
		switch action {
		case "DELETE":
			ref.OnDelete = value
		case "UPDATE":
			ref.OnUpdate = value
		default:
			idx += 2
			continue
		}
		idx += consumed
	}

	return ref, idx
}
