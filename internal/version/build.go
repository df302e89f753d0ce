// SPDX-License-Identifier: Apache-2.0

package version

import (
	_ "embed"
	"strings"
)

// Build modes reported in Info and used to pick the client identifier suffix.
const (
	ModeRelease = "release"
	ModeDev     = "dev"
)

//go:embed COMMIT
var commit string

//go:embed VERSION
var number string

// buildMode is stamped by the release pipeline:
//
//	-ldflags="-X 'github.com/electricsheep/groundwork/internal/version.buildMode=release'"
var buildMode string

func Commit() string { return strings.TrimSpace(commit) }

func Number() string { return strings.TrimSpace(number) }

// IsReleaseBuild reports whether the binary was stamped as a release. Anything else, including
// an unstamped local build, is a dev build and advertises itself with a "-dev" client suffix.
func IsReleaseBuild() bool {
	return modeOf(buildMode) == ModeRelease
}

func BuildMode() string {
	return modeOf(buildMode)
}

func modeOf(stamp string) string {
	if strings.TrimSpace(stamp) == ModeRelease {
		return ModeRelease
	}
	return ModeDev
}
