// SPDX-License-Identifier: Apache-2.0

package common

import (
	"testing"
	"time"

	"github.com/joomcode/errorx"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagDefinition_String(t *testing.T) {
	fp := FlagDefinition[string]{Name: "name", ShortName: "n", Description: "a name", Default: "default"}
	var v string
	cmd := &cobra.Command{}
	require.NoError(t, fp.SetVar(cmd, &v, false))

	got, err := fp.Value(cmd, nil)
	require.NoError(t, err)
	require.Equal(t, fp.Default, got)

	require.NoError(t, cmd.Flags().Set(fp.Name, "alice"))
	got, err = fp.Value(cmd, nil)
	require.NoError(t, err)
	require.Equal(t, "alice", got)
	require.Equal(t, "alice", v)
}

func TestFlagDefinition_Bool(t *testing.T) {
	fp := FlagDefinition[bool]{Name: "enabled", ShortName: "e", Description: "enabled", Default: false}
	var v bool
	cmd := &cobra.Command{}
	require.NoError(t, fp.SetVar(cmd, &v, false))

	got, err := fp.Value(cmd, []string{"--enabled"})
	require.NoError(t, err)
	require.True(t, got)
	require.True(t, v)
}

func TestFlagDefinition_Int(t *testing.T) {
	fp := FlagDefinition[int]{Name: "count", ShortName: "c", Description: "count", Default: 3}
	var v int
	cmd := &cobra.Command{}
	require.NoError(t, fp.SetVar(cmd, &v, false))

	got, err := fp.Value(cmd, []string{"-c", "7"})
	require.NoError(t, err)
	require.Equal(t, 7, got)
}

func TestFlagDefinition_StringSlice(t *testing.T) {
	fp := FlagDefinition[[]string]{Name: "items", Description: "items", Default: []string{}}
	var v []string
	cmd := &cobra.Command{}
	require.NoError(t, fp.SetVar(cmd, &v, false))

	got, err := fp.Value(cmd, []string{"--items", "a,b", "--items", "c"})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestFlagDefinition_Duration(t *testing.T) {
	fp := FlagDefinition[time.Duration]{Name: "lock-timeout", Description: "timeout", Default: time.Second}
	var v time.Duration
	cmd := &cobra.Command{}
	require.NoError(t, fp.SetVar(cmd, &v, false))

	got, err := fp.Value(cmd, nil)
	require.NoError(t, err)
	require.Equal(t, time.Second, got)

	got, err = fp.Value(cmd, []string{"--lock-timeout", "250ms"})
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, got)
}

func TestFlagDefinition_Required(t *testing.T) {
	fp := FlagDefinition[string]{Name: "pattern", Description: "pattern"}
	var v string
	cmd := &cobra.Command{}
	require.NoError(t, fp.SetVar(cmd, &v, true))

	ann := cmd.Flags().Lookup("pattern").Annotations
	assert.Equal(t, []string{"true"}, ann[cobra.BashCompOneRequiredFlag])
}

func TestFlagDefinition_Errors(t *testing.T) {
	tests := []struct {
		name string
		run  func() error
	}{
		{
			name: "nil pointer",
			run: func() error {
				fp := FlagDefinition[string]{Name: "x"}
				return fp.SetVar(&cobra.Command{}, nil, false)
			},
		},
		{
			name: "unsupported type",
			run: func() error {
				fp := FlagDefinition[float64]{Name: "ratio"}
				var v float64
				return fp.SetVar(&cobra.Command{}, &v, false)
			},
		},
		{
			name: "unknown flag on read",
			run: func() error {
				fp := FlagDefinition[string]{Name: "missing"}
				_, err := fp.Value(&cobra.Command{}, nil)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, errorx.IsOfType(err, errorx.IllegalArgument), "unexpected error: %v", err)
		})
	}
}

func TestFlagDefinition_MustSetVarPanicsOnNil(t *testing.T) {
	fp := FlagDefinition[bool]{Name: "offline"}
	assert.Panics(t, func() { fp.MustSetVar(&cobra.Command{}, nil, false) })
}
