// SPDX-License-Identifier: Apache-2.0

package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/electricsheep/groundwork/internal/version"
	"github.com/joomcode/errorx"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Render encodes v as yaml or json.
func Render(v any, format string) (string, error) {
	switch strings.ToLower(format) {
	case version.FormatJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return "", errorx.IllegalFormat.Wrap(err, "failed to marshal output to JSON")
		}
		return strings.TrimRight(buf.String(), "\n"), nil
	case version.FormatYAML, "":
		out, err := yaml.Marshal(v)
		if err != nil {
			return "", errorx.IllegalFormat.Wrap(err, "failed to marshal output to YAML")
		}
		return strings.TrimRight(string(out), "\n"), nil
	default:
		return "", errorx.IllegalFormat.New("unsupported format: %s", format)
	}
}

// Print renders v in the format requested by the --output flag.
func Print(cmd *cobra.Command, v any) error {
	format, err := cmd.Flags().GetString("output")
	if err != nil {
		format = version.FormatYAML
	}

	out, err := Render(v, format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}
