// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgforge/pgforge/pkg/executor"
)

type statusLine struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	State   string `json:"state"`
	Detail  string `json:"detail,omitempty"`
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied, pending, and drifted migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := NewEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			st, err := e.Status(ctx)
			if err != nil {
				return describeErrAsErr(err)
			}

			var lines []statusLine
			for _, r := range st.Applied {
				lines = append(lines, statusLine{Version: r.Version, Name: r.Name, State: "applied"})
			}
			for _, m := range st.Pending {
				lines = append(lines, statusLine{Version: m.Version, Name: m.Name, State: "pending"})
			}
			for _, d := range st.Drift {
				lines = append(lines, statusLine{Version: d.Version, Name: d.Name, State: driftState(d), Detail: d.Detail})
			}

			out, err := json.MarshalIndent(lines, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))

			if warnings, wErr := e.CheckToolVersionSkew(ctx); wErr == nil {
				for _, w := range warnings {
					fmt.Printf("warning: %s\n", w.String())
				}
			}
			return nil
		},
	}
}

func driftState(d *executor.DriftError) string {
	switch d.Kind {
	case executor.DriftMissingFile:
		return "missing-file"
	case executor.DriftChecksumMismatch:
		return "checksum-mismatch"
	case executor.DriftOutOfOrder:
		return "out-of-order"
	default:
		return "drift"
	}
}
