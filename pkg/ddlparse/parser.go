// SPDX-License-Identifier: Apache-2.0

package ddlparse

import (
	"errors"
	"regexp"
	"strings"

	"github.com/pgforge/pgforge/pkg/schema"
)

var createTablePrefixRe = regexp.MustCompile(`(?is)^CREATE\s+TABLE\s+(IF\s+NOT\s+EXISTS\s+)?("[^"]+"|[\w.]+)\s*\(`)

// Parse turns DDL source text into a schema.Schema. It never returns a
// ParseError for statements it doesn't recognize — those are reported as
// warnings and skipped — but a recognized-but-malformed
// statement (e.g. a CREATE TABLE with an unterminated body) is an error.
func Parse(text string) (*schema.Schema, []Warning, error) {
	stmts := SplitStatements(text)
	sch := schema.New("public")
	sch.Version = "parsed"

	var warnings []Warning
	var alterActions []struct {
		stmtIdx int
		action  *alterAction
	}

	// Pass 1: CREATE TABLE. ALTER TABLE actions are deferred to pass 2 so a
	// column add/drop can target a table declared later in the file.
	for _, stmt := range stmts {
		text := stmt.Text
		switch {
		case createTablePrefixRe.MatchString(text):
			table, ws, err := parseCreateTableStatement(stmt)
			if err != nil {
				return nil, nil, err
			}
			sch.AddTable(table)
			warnings = append(warnings, ws...)

		case hasPrefixKeyword(text, "ALTER", "TABLE"):
			action, err := parseAlterTable(text)
			if err != nil {
				return nil, nil, err
			}
			if action == nil {
				warnings = append(warnings, Warning{StatementIndex: stmt.Index, Message: "unsupported ALTER TABLE action, skipped"})
				continue
			}
			alterActions = append(alterActions, struct {
				stmtIdx int
				action  *alterAction
			}{stmt.Index, action})
		}
	}

	// Pass 2: apply deferred ALTER TABLE actions.
	for _, a := range alterActions {
		table := sch.GetTable(a.action.Table)
		if table == nil {
			warnings = append(warnings, Warning{StatementIndex: a.stmtIdx, Message: "ALTER TABLE on unknown table \"" + a.action.Table + "\", skipped"})
			continue
		}
		switch {
		case a.action.AddColumn != nil:
			applyParsedColumn(table, a.action.AddColumn, newConstraintNamer(table.Name))
		case a.action.DropColumn != "":
			if table.GetColumn(a.action.DropColumn) == nil {
				warnings = append(warnings, Warning{StatementIndex: a.stmtIdx, Message: "DROP COLUMN \"" + a.action.DropColumn + "\" on unknown column, skipped"})
				continue
			}
			table.Columns.Delete(a.action.DropColumn)
		}
	}

	// Pass 3: CREATE INDEX, now that every table is known.
	for _, stmt := range stmts {
		text := stmt.Text
		if !hasPrefixKeyword(text, "CREATE") || createTablePrefixRe.MatchString(text) {
			continue
		}
		if !strings.Contains(strings.ToUpper(text), "INDEX") {
			continue
		}
		idx, err := parseCreateIndex(text)
		if err != nil {
			return nil, nil, err
		}
		if idx == nil {
			warnings = append(warnings, Warning{StatementIndex: stmt.Index, Message: "unrecognized DDL statement, skipped"})
			continue
		}
		table := sch.GetTable(idx.Table)
		if table == nil {
			warnings = append(warnings, Warning{StatementIndex: stmt.Index, Message: "index \"" + idx.Index.Name + "\" on unknown table \"" + idx.Table + "\", skipped"})
			continue
		}
		table.Indexes[idx.Index.Name] = idx.Index
	}

	// Anything left unrecognized gets a warning rather than failing the
	// whole parse.
	for _, stmt := range stmts {
		if createTablePrefixRe.MatchString(stmt.Text) {
			continue
		}
		if hasPrefixKeyword(stmt.Text, "ALTER", "TABLE") {
			continue
		}
		if hasPrefixKeyword(stmt.Text, "CREATE") && strings.Contains(strings.ToUpper(stmt.Text), "INDEX") {
			continue
		}
		warnings = append(warnings, Warning{StatementIndex: stmt.Index, Message: "unrecognized DDL statement, skipped: " + truncate(stmt.Text, 60)})
	}

	return sch, warnings, nil
}

func hasPrefixKeyword(stmt string, kws ...string) bool {
	toks := tokenize(stmt)
	if len(toks) < len(kws) {
		return false
	}
	for i, kw := range kws {
		if !strings.EqualFold(toks[i], kw) {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// parseCreateTableStatement parses one CREATE TABLE statement, including its
// inline column/constraint modifiers and second-class effects (unique
// columns, inline references, inline checks) promoted to table-level
// constraints with Postgres's default naming convention.
func parseCreateTableStatement(stmt Statement) (*schema.Table, []Warning, error) {
	text := stmt.Text
	loc := createTablePrefixRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, nil, &ParseError{StatementIndex: stmt.Index, Offset: stmt.Offset, Reason: "malformed CREATE TABLE"}
	}
	m := createTablePrefixRe.FindStringSubmatch(text)
	name := unquoteIdent(m[2])

	bodyStart := loc[1] // just past the opening '('
	body, _, err := scanBalanced(text, bodyStart)
	if err != nil {
		return nil, nil, &ParseError{StatementIndex: stmt.Index, Offset: stmt.Offset, Reason: err.Error()}
	}

	table := schema.NewTable(name)
	namer := newConstraintNamer(name)
	var warnings []Warning

	for _, item := range SplitTopLevelCommas(body) {
		if item == "" {
			continue
		}
		if isConstraintItem(item) {
			c, err := parseConstraintItem(item, namer)
			if err != nil {
				return nil, nil, &ParseError{StatementIndex: stmt.Index, Offset: stmt.Offset, Reason: err.Error()}
			}
			table.Constraints[c.Name] = c
			if c.Kind == schema.PrimaryKeyConstraint {
				for _, colName := range c.Columns {
					if col := table.GetColumn(colName); col != nil {
						col.PrimaryKey = true
					}
				}
			}
			continue
		}
		pc, err := parseColumnItem(item)
		if err != nil {
			return nil, nil, &ParseError{StatementIndex: stmt.Index, Offset: stmt.Offset, Reason: err.Error()}
		}
		applyParsedColumn(table, pc, namer)
	}

	return table, warnings, nil
}

// applyParsedColumn adds a parsed column to a table, promoting any inline
// UNIQUE/REFERENCES/CHECK modifier to a table-level constraint and, for a
// bare PRIMARY KEY column modifier, to the table's primary-key constraint.
func applyParsedColumn(table *schema.Table, pc *parsedColumn, namer *constraintNamer) {
	table.AddColumn(pc.Column)

	if pc.Column.PrimaryKey && table.PrimaryKeyConstraintFor() == nil {
		table.Constraints[namer.primaryKey()] = &schema.Constraint{
			Name:    namer.primaryKey(),
			Kind:    schema.PrimaryKeyConstraint,
			Columns: []string{pc.Column.Name},
		}
	}
	if pc.InlineUnique {
		name := namer.unique([]string{pc.Column.Name})
		table.Constraints[name] = &schema.Constraint{Name: name, Kind: schema.UniqueConstraint, Columns: []string{pc.Column.Name}}
	}
	if pc.InlineReference != nil {
		name := namer.foreignKey([]string{pc.Column.Name})
		table.Constraints[name] = &schema.Constraint{
			Name: name, Kind: schema.ForeignKeyConstraint,
			Columns: []string{pc.Column.Name}, Reference: pc.InlineReference,
		}
	}
	if pc.InlineCheck != "" {
		name := namer.check()
		table.Constraints[name] = &schema.Constraint{Name: name, Kind: schema.CheckConstraint, Check: pc.InlineCheck}
	}
}

// scanBalanced returns the text between start (just past an already-consumed
// opening paren at depth 1) and its matching close paren, plus the index
// just past that close paren.
func scanBalanced(s string, start int) (string, int, error) {
	depth := 1
	var quote byte
	n := len(s)
	for i := start; i < n; i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				if i+1 < n && s[i+1] == quote {
					i++
					continue
				}
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[start:i], i + 1, nil
			}
		}
	}
	return "", 0, errUnterminated
}

var errUnterminated = errors.New("unterminated CREATE TABLE body")
