// SPDX-License-Identifier: Apache-2.0

package ddlparse

import (
	"regexp"
	"strings"

	"github.com/pgforge/pgforge/pkg/schema"
)

// createIndexRe captures CREATE [UNIQUE] INDEX [IF NOT EXISTS] name ON table
// ( cols ). Column expressions beyond a bare name (e.g. functional indexes)
// aren't supported; the column list is split by SplitTopLevelCommas and each
// item's leading identifier is taken, ignoring any ASC/DESC/NULLS FIRST
// trailing modifiers.
var createIndexRe = regexp.MustCompile(`(?is)^CREATE\s+(UNIQUE\s+)?INDEX\s+(CONCURRENTLY\s+)?(IF\s+NOT\s+EXISTS\s+)?("?[\w]+"?)\s+ON\s+("?[\w.]+"?)\s*(?:USING\s+\w+\s*)?\(\s*(.*)\s*\)\s*$`)

type parsedIndex struct {
	Table string
	Index *schema.Index
}

// parseCreateIndex parses a CREATE INDEX statement. It returns (nil, nil) if
// the statement isn't in the supported form, letting the caller fall back to
// a skip-with-warning.
func parseCreateIndex(stmt string) (*parsedIndex, error) {
	m := createIndexRe.FindStringSubmatch(strings.TrimSpace(stmt))
	if m == nil {
		return nil, nil
	}

	unique := strings.TrimSpace(m[1]) != ""
	name := unquoteIdent(m[4])
	table := unquoteIdent(m[5])

	var cols []string
	for _, item := range SplitTopLevelCommas(m[6]) {
		toks := tokenize(item)
		if len(toks) == 0 {
			continue
		}
		cols = append(cols, unquoteIdent(toks[0]))
	}
	if len(cols) == 0 {
		return nil, &ParseError{Reason: "CREATE INDEX with no columns: " + stmt}
	}

	return &parsedIndex{
		Table: table,
		Index: &schema.Index{Name: name, Columns: cols, Unique: unique},
	}, nil
}
