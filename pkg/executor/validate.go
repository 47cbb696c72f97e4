// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pgforge/pgforge/pkg/ddlparse"
)

// validateMigration checks every statement in a migration with PREPARE
// before any of them run for real, so a typo three statements in doesn't
// leave the first two applied and the rest not.
//
// PREPARE only accepts SELECT, INSERT, UPDATE, DELETE, MERGE, VALUES and
// WITH statements; Postgres reports any other statement, DDL such as CREATE
// TABLE included, as a syntax error (SQLSTATE 42601). Statements with any
// other leading keyword are therefore not prepared: they are checked by
// execution itself, inside the same per-migration transaction.
func validateMigration(ctx context.Context, tx *sql.Tx, sql string) error {
	for _, stmt := range ddlparse.SplitStatements(sql) {
		if err := validateStatement(ctx, tx, stmt.Text); err != nil {
			return err
		}
	}
	return nil
}

func validateStatement(ctx context.Context, tx *sql.Tx, stmt string) error {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return nil
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "INSERT", "UPDATE", "DELETE", "MERGE", "VALUES", "WITH":
	default:
		return nil
	}

	spName := "pgforge_sp_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	prepName := "pgforge_validate_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SAVEPOINT %s", spName)); err != nil {
		return fmt.Errorf("executor: savepoint before validation: %w", err)
	}

	_, err := tx.ExecContext(ctx, fmt.Sprintf("PREPARE %s AS %s", prepName, stmt))
	if err == nil {
		_, _ = tx.ExecContext(ctx, fmt.Sprintf("DEALLOCATE %s", prepName))
		_, _ = tx.ExecContext(ctx, fmt.Sprintf("RELEASE SAVEPOINT %s", spName))
		return nil
	}

	if _, rbErr := tx.ExecContext(ctx, fmt.Sprintf("ROLLBACK TO SAVEPOINT %s", spName)); rbErr != nil {
		return fmt.Errorf("executor: rollback to savepoint after validation failure: %w", rbErr)
	}

	if isUtilityStatementCannotBePrepared(err) {
		return nil
	}
	return err
}

// isUtilityStatementCannotBePrepared reports whether err is Postgres
// rejecting PREPARE with a 42601 error whose message says the statement
// cannot be prepared, which this validator treats as a carve-out rather
// than a real validation failure.
func isUtilityStatementCannotBePrepared(err error) bool {
	pqErr := &pq.Error{}
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "42601" && strings.Contains(strings.ToLower(pqErr.Message), "cannot be prepared")
}
