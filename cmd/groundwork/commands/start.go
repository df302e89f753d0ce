// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"time"

	"github.com/automa-saga/automa"
	"github.com/automa-saga/logx"
	"github.com/electricsheep/groundwork/cmd/groundwork/commands/common"
	"github.com/electricsheep/groundwork/internal/bootstrap"
	"github.com/electricsheep/groundwork/internal/doctor"
	"github.com/electricsheep/groundwork/internal/workflows"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the startup sequence",
	Long:  "Open and migrate the local store, then decide whether the remote backend is used",
	RunE:  runStart,
}

// StartupStatus describes the outcome of the startup sequence.
type StartupStatus struct {
	Store  StoreStatus      `yaml:"store" json:"store"`
	Remote bootstrap.Report `yaml:"remote" json:"remote"`
}

func init() {
	common.FlagOffline.MustSetVar(startCmd, &flagOffline, false)
	common.FlagStorePath.MustSetVar(startCmd, &flagStorePath, false)
	common.FlagLockTimeout.MustSetVar(startCmd, &flagLockTimeout, false)
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt := common.NewRuntime(ctx)
	defer rt.Close()

	opts := rt.StartupOptions(flagOffline)
	opts.Store = storeOptions(rt)

	started, report, err := workflows.RunStartup(ctx, opts)
	saveReport(rt, report)
	if err != nil {
		doctor.CheckReportErr(ctx, report)
		return err
	}
	defer started.Close()

	v, err := started.Store.Version(ctx)
	if err != nil {
		return err
	}

	return common.Print(cmd, StartupStatus{
		Store:  StoreStatus{Path: started.Store.Path(), Version: v},
		Remote: started.Decision.Report(isPinned(started.Decision)),
	})
}

// saveReport keeps the startup report next to the journal. A report that cannot be written is
// logged and otherwise ignored.
func saveReport(rt *common.Runtime, report *automa.Report) {
	if report == nil {
		return
	}

	path, err := workflows.SaveReport(report, rt.Config.Journal.Directory, time.Now())
	if err != nil {
		logx.As().Warn().Err(err).Msg("Failed to save the startup report")
		return
	}
	logx.As().Info().Str("report_path", path).Msg("Startup report is saved")
}
