// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pgforge/pgforge/cmd/flags"
	"github.com/pgforge/pgforge/pkg/config"
	"github.com/pgforge/pgforge/pkg/engine"
)

// Version is the pgforge version, set at build time via -ldflags.
var Version = "development"

func init() {
	viper.SetEnvPrefix("PGFORGE")
	viper.AutomaticEnv()

	flags.ConnectionFlags(rootCmd)
}

var rootCmd = &cobra.Command{
	Use:          "pgforge",
	Short:        "Schema-as-code migrations for PostgreSQL",
	SilenceUsage: true,
	Version:      Version,
}

// NewEngine opens an Engine against the connection and migrations directory
// named by the current flags, using the real filesystem and a pterm logger.
func NewEngine(ctx context.Context) (*engine.Engine, error) {
	engine.ToolVersion = Version

	opts := config.DefaultOptions()
	opts.CheckForDataLoss = !flags.SkipDataLossCheck()
	opts.RollbackStrict = !flags.PermissiveRollback()

	cfg := config.Config{
		MigrationsDir: flags.MigrationsDir(),
		Options:       opts,
	}
	conn := config.ConnectionConfig{
		DSN:        flags.PostgresURL(),
		SchemaName: flags.Schema(),
	}

	return engine.Open(ctx, cfg, conn, afero.NewOsFs(), newPtermLogger())
}

// Execute executes the root command.
func Execute() error {
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(genCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(rollbackCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(initCmd())

	return rootCmd.Execute()
}
