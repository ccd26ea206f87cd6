package application

import (
	"strings"

	"golang.org/x/mod/semver"
)

// stateFilterMinVersion is the hub version that introduced server-side
// state filtering on the account listing.
const stateFilterMinVersion = "v1.3.0"

// supportsStateFilter reports whether a hub-reported version string is
// at least the state-filter minimum. Hub versions are plain
// "major.minor.patch" with occasional suffixes like "1.4.0.dev" or
// "2.0.0b1"; everything past the numeric core is ignored. Unparseable
// versions are treated as too old.
func supportsStateFilter(version string) bool {
	core := strings.TrimPrefix(version, "v")
	if i := strings.IndexFunc(core, func(r rune) bool {
		return r != '.' && (r < '0' || r > '9')
	}); i >= 0 {
		core = core[:i]
	}
	core = strings.TrimRight(core, ".")
	if core == "" {
		return false
	}

	canonical := semver.Canonical("v" + core)
	return semver.IsValid(canonical) && semver.Compare(canonical, stateFilterMinVersion) >= 0
}
