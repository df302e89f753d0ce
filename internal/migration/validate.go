// SPDX-License-Identifier: Apache-2.0

package migration

import (
	"sort"
)

// ValidateStep checks that a step moves strictly forward.
func ValidateStep(from, to int) error {
	if to <= from {
		return NewNonForwardMigrationError(from, to)
	}
	return nil
}

// ValidateSequence checks that the steps, ordered by their starting version, form a contiguous
// chain from current to target. The input slice is not modified.
//
// Steps are not filtered: every step passed in must be part of the chain.
func ValidateSequence(current, target int, steps []Step) error {
	sorted := sortedByFrom(steps)

	expected := current
	for _, s := range sorted {
		if err := ValidateStep(s.From, s.To); err != nil {
			return err
		}
		if s.From != expected {
			return NewMigrationGapError(expected, s.From)
		}
		expected = s.To
	}

	if expected != target {
		return NewIncompleteMigrationSequenceError(expected, target)
	}

	return nil
}

// Plan selects the steps needed to move a store from current to target and validates that they
// form a contiguous chain. An empty plan means the store is already at target.
func Plan(current, target int, steps []Step) ([]Step, error) {
	if current > target {
		return nil, NewDowngradeNotSupportedError(current, target)
	}

	if current == target {
		return []Step{}, nil
	}

	var selected []Step
	for _, s := range steps {
		if err := ValidateStep(s.From, s.To); err != nil {
			return nil, err
		}
		if s.From >= current && s.From < target {
			selected = append(selected, s)
		}
	}

	if err := ValidateSequence(current, target, selected); err != nil {
		return nil, err
	}

	return sortedByFrom(selected), nil
}

func sortedByFrom(steps []Step) []Step {
	sorted := make([]Step, len(steps))
	copy(sorted, steps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].From < sorted[j].From
	})
	return sorted
}
