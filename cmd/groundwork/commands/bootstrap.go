// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"github.com/automa-saga/logx"
	"github.com/electricsheep/groundwork/cmd/groundwork/commands/common"
	"github.com/electricsheep/groundwork/internal/bootstrap"
	"github.com/electricsheep/groundwork/internal/pinning"
	"github.com/spf13/cobra"
)

var (
	flagOffline bool

	bootstrapCmd = &cobra.Command{
		Use:   "bootstrap",
		Short: "Decide whether the remote backend is used",
		Long:  "Evaluate the offline-only flag and the backend credentials, build the remote client and report the decision",
		RunE:  runBootstrap,
	}
)

func init() {
	common.FlagOffline.MustSetVar(bootstrapCmd, &flagOffline, false)
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt := common.NewRuntime(ctx)
	defer rt.Close()

	o := bootstrap.NewOrchestrator(rt.Config.Remote.Client(),
		bootstrap.WithLogger(logx.As()),
		bootstrap.WithJournal(rt.Journal()),
		bootstrap.WithFactory(rt.Factory()),
		bootstrap.WithTraceID(rt.TraceID),
	)

	d := o.CreateRemoteClient(ctx, rt.FlagManager(flagOffline))
	return common.Print(cmd, d.Report(isPinned(d)))
}

func isPinned(d bootstrap.Decision) bool {
	return d.Client != nil && pinning.IsPinningEnabled(d.Client.Transport())
}
