// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var force, dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := NewEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			results, err := e.Migrate(ctx, dryRun, force)
			if err != nil {
				return describeErrAsErr(err)
			}

			if len(results) == 0 {
				fmt.Println("database is up to date; no migrations to apply")
				return nil
			}
			if dryRun {
				fmt.Printf("dry run: %d migration(s) would be applied\n", len(results))
				return nil
			}
			fmt.Printf("applied %d migration(s)\n", len(results))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Apply despite drift (missing file, changed checksum, out-of-order migration)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print pending migrations and their DDL without applying them")
	return cmd
}
