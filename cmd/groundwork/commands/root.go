// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"

	"github.com/automa-saga/logx"
	"github.com/electricsheep/groundwork/cmd/groundwork/commands/version"
	"github.com/electricsheep/groundwork/internal/config"
	"github.com/electricsheep/groundwork/internal/doctor"
	"github.com/joomcode/errorx"
	"github.com/spf13/cobra"
)

// examples:
// ./groundwork migrate --config ./groundwork.yaml
// ./groundwork bootstrap --offline -o json
// ./groundwork pin ./backend.pem --pattern "*.supabase.co"

var (
	// Used for flags.
	flagConfig       string
	flagVersion      bool
	flagOutputFormat string

	rootCmd = &cobra.Command{
		Use:   "groundwork",
		Short: "Local store migrations and remote bootstrap",
		Long:  "Groundwork - opens and migrates the local store and decides whether the remote backend is used",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagVersion {
				version.PrintVersion(cmd, flagOutputFormat)
				return nil
			}

			return cmd.Help()
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file path")

	// support '--version', '-v' to show version information
	rootCmd.PersistentFlags().BoolVarP(&flagVersion, "version", "v", false, "Show version")
	rootCmd.PersistentFlags().StringVarP(&flagOutputFormat, "output", "o", "yaml", "Output format (yaml|json)")

	// disable command sorting to keep the order of commands as added
	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(version.GetCmd())
}

// Execute executes the root command.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errorx.IllegalArgument.New("context is required")
	}

	cobra.OnInitialize(func() {
		initConfig(ctx)
	})

	_, err := rootCmd.ExecuteContextC(ctx)
	if err != nil {
		return errorx.Decorate(err, "failed to execute command")
	}

	return nil
}

func initConfig(ctx context.Context) {
	if err := config.Initialize(flagConfig); err != nil {
		doctor.CheckErr(ctx, err)
	}

	if err := config.Get().Validate(); err != nil {
		doctor.CheckErr(ctx, err)
	}

	if err := logx.Initialize(config.Get().Log); err != nil {
		doctor.CheckErr(ctx, err)
	}
}
