// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgforge/pgforge/pkg/sqlgen"
)

func planCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "plan <schema-file>",
		Short:     "Show the DDL that would be generated for a desired schema, without writing or running anything",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"schema-file"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ddl, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading schema file: %w", err)
			}

			e, err := NewEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			d, parseWarnings, err := e.Plan(ctx, string(ddl))
			if err != nil {
				return describeErrAsErr(err)
			}

			for _, w := range parseWarnings {
				fmt.Printf("warning: %s\n", w.String())
			}
			for _, w := range d.Warnings {
				fmt.Printf("warning [%s]: %s (%s)\n", w.Table, w.Message, w.Severity)
			}

			if d.IsEmpty() {
				fmt.Println("no changes")
				return nil
			}

			fmt.Print(sqlgen.Render(sqlgen.Generate(d)))
			return nil
		},
	}
}

// describeErrAsErr wraps describeErr's human-readable rendering back into an
// error so cobra still reports a non-zero exit code.
func describeErrAsErr(err error) error {
	return fmt.Errorf("%s", describeErr(err))
}
