// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"

	"github.com/electricsheep/groundwork/cmd/groundwork/commands"
	"github.com/electricsheep/groundwork/internal/doctor"
	"github.com/electricsheep/groundwork/internal/journal"
	"github.com/google/uuid"
)

func main() {
	traceId := uuid.NewString()
	ctx := journal.WithTraceID(context.Background(), traceId)
	err := commands.Execute(ctx)
	if err != nil {
		doctor.CheckErr(ctx, err)
	}
}
