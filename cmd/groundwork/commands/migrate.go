// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"time"

	"github.com/electricsheep/groundwork/cmd/groundwork/commands/common"
	"github.com/electricsheep/groundwork/internal/store"
	"github.com/spf13/cobra"
)

var (
	flagStorePath   string
	flagLockTimeout time.Duration

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Open the local store and bring it to the current schema version",
		Long:  "Open the local store, creating it at the current schema version when absent and applying pending migrations otherwise",
		RunE:  runMigrate,
	}
)

// StoreStatus describes an opened store.
type StoreStatus struct {
	Path    string `yaml:"path" json:"path"`
	Version int    `yaml:"version" json:"version"`
}

func init() {
	common.FlagStorePath.MustSetVar(migrateCmd, &flagStorePath, false)
	common.FlagLockTimeout.MustSetVar(migrateCmd, &flagLockTimeout, false)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt := common.NewRuntime(ctx)
	defer rt.Close()

	s, err := store.Open(ctx, storeOptions(rt))
	if err != nil {
		return err
	}
	defer s.Close()

	v, err := s.Version(ctx)
	if err != nil {
		return err
	}

	return common.Print(cmd, StoreStatus{Path: s.Path(), Version: v})
}

// storeOptions applies the command-line overrides on top of the configured store options.
func storeOptions(rt *common.Runtime) store.Options {
	opts := rt.StoreOptions()
	if flagStorePath != "" {
		opts.Path = flagStorePath
	}
	if flagLockTimeout > 0 {
		opts.LockTimeout = flagLockTimeout
	}
	return opts
}
