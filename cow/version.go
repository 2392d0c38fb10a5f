package cow

import "golang.org/x/mod/semver"

// Version information for the copy-on-write container.
const (
	// Version is the current version of the package.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info describes the package build.
type Info struct {
	// Version is the package version string.
	Version string

	// Lock names the lock used for value access.
	Lock string

	// Tracing reports whether lineage origin tracing is currently on.
	Tracing bool
}

// GetInfo returns information about the package.
//
// Example:
//
//	info := cow.GetInfo()
//	fmt.Printf("cowarc %s (%s)\n", info.Version, info.Lock)
func GetInfo() Info {
	return Info{
		Version: Version,
		Lock:    "spin",
		Tracing: CurrentConfig().TraceOrigins,
	}
}

// Compatible reports whether a caller built against version v can use this
// package: v must be valid semver with the same major version. The leading
// "v" is optional.
func Compatible(v string) bool {
	v = canonical(v)
	if !semver.IsValid(v) {
		return false
	}
	return semver.Major(v) == semver.Major(canonical(Version))
}

// Canonical returns v in canonical semver form ("v0.1.0"), or "" if v is
// not a valid version.
func Canonical(v string) string {
	return semver.Canonical(canonical(v))
}

func canonical(v string) string {
	if v != "" && v[0] != 'v' {
		return "v" + v
	}
	return v
}
