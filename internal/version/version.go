// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/joomcode/errorx"
)

// fallback is reported when the embedded version is not valid semver.
const fallback = "0.0.0"

// Semver parses the embedded version number.
func Semver() (*semver.Version, error) {
	return parse(Number())
}

func parse(raw string) (*semver.Version, error) {
	v, err := semver.NewVersion(strings.TrimSpace(raw))
	if err != nil {
		return nil, errorx.IllegalFormat.Wrap(err, "invalid version number %q", raw)
	}
	return v, nil
}

// UserAgent identifies this build to remote services as "<product>/<major.minor.patch>", with a
// "-dev" suffix outside release builds.
func UserAgent(product string) string {
	return userAgent(product, Number(), IsReleaseBuild())
}

func userAgent(product, raw string, release bool) string {
	number := fallback
	if v, err := parse(raw); err == nil {
		number = fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
	}

	if !release {
		number += "-dev"
	}
	return product + "/" + number
}
