// SPDX-License-Identifier: Apache-2.0

package common

import (
	"time"

	"github.com/joomcode/errorx"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	FlagOffline = FlagDefinition[bool]{
		Name:        "offline",
		Description: "Force offline-only mode, overriding the configured feature flag",
		Default:     false,
	}

	FlagPattern = FlagDefinition[string]{
		Name:        "pattern",
		ShortName:   "p",
		Description: "Host pattern; when set the pins are printed as a pin table entry",
		Default:     "",
	}

	FlagStorePath = FlagDefinition[string]{
		Name:        "store",
		ShortName:   "s",
		Description: "Path of the local store, overriding store.path",
		Default:     "",
	}

	FlagLockTimeout = FlagDefinition[time.Duration]{
		Name:        "lock-timeout",
		Description: "How long to wait for the store lock, overriding store.lockTimeout",
		Default:     0,
	}
)

// FlagDefinition defines a command-line flag typed by T.
type FlagDefinition[T any] struct {
	Name        string
	ShortName   string
	Description string
	Default     T
}

func (fp *FlagDefinition[T]) valueFrom(flags *pflag.FlagSet) (T, error) {
	var zero T
	var v any
	var err error

	switch any(zero).(type) {
	case string:
		v, err = flags.GetString(fp.Name)
	case bool:
		v, err = flags.GetBool(fp.Name)
	case int:
		v, err = flags.GetInt(fp.Name)
	case []string:
		v, err = flags.GetStringSlice(fp.Name)
	case time.Duration:
		v, err = flags.GetDuration(fp.Name)
	default:
		return zero, errorx.IllegalArgument.New("unsupported flag type: %T", zero)
	}

	if err != nil {
		return zero, errorx.IllegalArgument.Wrap(err, "failed to read flag %s", fp.Name)
	}
	return v.(T), nil
}

// Value extracts the flag value (persistent, local or inherited from a parent) of the command.
func (fp *FlagDefinition[T]) Value(cmd *cobra.Command, args []string) (T, error) {
	if args == nil {
		args = []string{}
	}

	if err := cmd.ParseFlags(args); err != nil {
		var zero T
		return zero, errorx.InternalError.Wrap(err, "failed to parse flags for command %s", cmd.Name())
	}

	return fp.valueFrom(cmd.Flags())
}

// SetVar registers the flag on the command.
func (fp *FlagDefinition[T]) SetVar(cmd *cobra.Command, p *T, required bool) error {
	if err := fp.setFlagVar(cmd.Flags(), cmd, p); err != nil {
		return err
	}

	if required {
		if err := cmd.MarkFlagRequired(fp.Name); err != nil {
			return errorx.InternalError.Wrap(err, "failed to mark flag %s as required", fp.Name)
		}
	}

	return nil
}

// MustSetVar is SetVar for package initialisation; a registration error is a programming error.
func (fp *FlagDefinition[T]) MustSetVar(cmd *cobra.Command, p *T, required bool) {
	if err := fp.SetVar(cmd, p, required); err != nil {
		panic(err)
	}
}

func (fp *FlagDefinition[T]) setFlagVar(flags *pflag.FlagSet, cmd *cobra.Command, p *T) error {
	if p == nil {
		return errorx.IllegalArgument.New("pointer for flag %s is nil", fp.Name)
	}
	if cmd == nil {
		return errorx.IllegalArgument.New("command for flag %s is nil", fp.Name)
	}

	switch ptr := any(p).(type) {
	case *string:
		flags.StringVarP(ptr, fp.Name, fp.ShortName, any(fp.Default).(string), fp.Description)
	case *bool:
		flags.BoolVarP(ptr, fp.Name, fp.ShortName, any(fp.Default).(bool), fp.Description)
	case *int:
		flags.IntVarP(ptr, fp.Name, fp.ShortName, any(fp.Default).(int), fp.Description)
	case *[]string:
		flags.StringSliceVarP(ptr, fp.Name, fp.ShortName, any(fp.Default).([]string), fp.Description)
	case *time.Duration:
		flags.DurationVarP(ptr, fp.Name, fp.ShortName, any(fp.Default).(time.Duration), fp.Description)
	default:
		return errorx.IllegalArgument.New("unsupported flag type: %T", p)
	}

	return nil
}
