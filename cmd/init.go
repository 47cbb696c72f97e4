// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Bootstrap pgforge's history table in the target database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sp, _ := pterm.DefaultSpinner.WithText("Initializing pgforge...").Start()

			e, err := NewEngine(ctx)
			if err != nil {
				sp.Fail(fmt.Sprintf("Failed to initialize pgforge: %s", err))
				return err
			}
			defer e.Close()

			sp.Success("Initialization complete")
			return nil
		},
	}
}
