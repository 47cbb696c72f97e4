// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func genCmd() *cobra.Command {
	c := &cobra.Command{
		Use:       "gen <schema-file> <name>",
		Short:     "Generate a new migration file from the diff between a desired schema and the live database",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"schema-file", "name"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			schemaFile, name := args[0], args[1]

			ddl, err := os.ReadFile(schemaFile)
			if err != nil {
				return fmt.Errorf("reading schema file: %w", err)
			}

			e, err := NewEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			result, err := e.Gen(ctx, string(ddl), name)
			if err != nil {
				return describeErrAsErr(err)
			}

			for _, w := range result.ParseWarnings {
				fmt.Printf("warning: %s\n", w.String())
			}
			for _, w := range result.DiffWarnings {
				fmt.Printf("warning [%s]: %s (%s)\n", w.Table, w.Message, w.Severity)
			}

			if result.Migration == nil {
				fmt.Println("no changes; nothing generated")
				return nil
			}

			fmt.Printf("generated %s\n", result.Migration.FileName)
			return nil
		},
	}

	return c
}
