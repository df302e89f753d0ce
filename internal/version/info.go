// SPDX-License-Identifier: Apache-2.0

package version

import (
	"encoding/json"
	"runtime"
	"strings"

	"github.com/joomcode/errorx"
	"gopkg.in/yaml.v3"
)

// Product names this module in the client identifier sent to the backend.
const Product = "groundwork-go"

// Info is what `groundwork version` prints.
type Info struct {
	Number    string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildMode string `json:"buildMode" yaml:"buildMode"`
	Client    string `json:"client" yaml:"client"`
	GoVersion string `json:"go" yaml:"go"`
}

const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

func (v Info) Format(format string) (string, error) {
	var (
		out []byte
		err error
	)
	switch strings.ToLower(format) {
	case FormatJSON:
		out, err = json.Marshal(v)
	case FormatYAML:
		out, err = yaml.Marshal(v)
	default:
		return "", errorx.IllegalFormat.New("unsupported format: %s", format)
	}
	if err != nil {
		return "", errorx.IllegalFormat.Wrap(err, "failed to render version info as %s", format)
	}
	return string(out), nil
}

func newInfo(raw, commit, stamp string) Info {
	mode := modeOf(stamp)
	return Info{
		Number:    strings.TrimSpace(raw),
		Commit:    strings.TrimSpace(commit),
		BuildMode: mode,
		Client:    userAgent(Product, raw, mode == ModeRelease),
		GoVersion: runtime.Version(),
	}
}

// Get describes the running binary.
func Get() Info {
	return newInfo(number, commit, buildMode)
}
