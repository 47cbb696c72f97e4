// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func rollbackCmd() *cobra.Command {
	var force bool
	var count int

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the most recently applied migration(s)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := NewEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			sp, _ := pterm.DefaultSpinner.WithText("Rolling back migration...").Start()
			results, err := e.Rollback(ctx, count, force)
			if err != nil {
				sp.Fail(fmt.Sprintf("Failed to roll back migration: %s", describeErr(err)))
				return err
			}
			if len(results) == 0 {
				sp.Warning("No applied migrations to roll back")
				return nil
			}

			for _, r := range results {
				sp.Success(fmt.Sprintf("Rolled back %04d_%s", r.Version, r.Name))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Roll back despite drift (missing file, no down file) instead of refusing")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of most recently applied migrations to roll back")
	return cmd
}
