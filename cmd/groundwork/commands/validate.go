// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"github.com/electricsheep/groundwork/cmd/groundwork/commands/common"
	"github.com/electricsheep/groundwork/internal/migration"
	"github.com/electricsheep/groundwork/internal/schema"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that the registered migrations form a complete chain",
	Long:  "Check that the registered migrations lead from version 1 to the current schema version without gaps",
	RunE:  runValidate,
}

// ValidationResult describes the registered migration chain.
type ValidationResult struct {
	TargetVersion int      `yaml:"targetVersion" json:"targetVersion"`
	Steps         []string `yaml:"steps" json:"steps"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	steps := schema.Steps()
	if err := migration.ValidateSequence(1, schema.TargetVersion, steps); err != nil {
		return err
	}

	plan, err := migration.Plan(1, schema.TargetVersion, steps)
	if err != nil {
		return err
	}

	result := ValidationResult{TargetVersion: schema.TargetVersion, Steps: []string{}}
	for _, s := range plan {
		result.Steps = append(result.Steps, s.String()+" "+s.Description)
	}

	return common.Print(cmd, result)
}
