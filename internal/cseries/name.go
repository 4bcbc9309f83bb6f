package cseries

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxSeriesVersion is the highest version a series may reach.
const MaxSeriesVersion = 99

// SplitNameVersion splits a series or branch name into its base name and
// the version encoded by any trailing decimals. A name with no digit
// suffix yields version 0, meaning "unspecified". Purely numeric names are
// illegal, a trailing version and a differing explicit version are a hard
// error, and versions above MaxSeriesVersion are rejected.
func SplitNameVersion(arg string, explicit int) (string, int, error) {
	i := len(arg)
	for i > 0 && arg[i-1] >= '0' && arg[i-1] <= '9' {
		i--
	}
	name, digits := arg[:i], arg[i:]
	if name == "" {
		return "", 0, inputf("name %q is purely numeric", arg)
	}

	version := 0
	if digits != "" {
		v, err := strconv.Atoi(digits)
		if err != nil || v < 1 {
			return "", 0, inputf("bad version suffix in %q", arg)
		}
		version = v
	}
	if explicit > 0 {
		if version > 0 && version != explicit {
			return "", 0, inputf("name %q implies version %d but -V gives %d",
				arg, version, explicit)
		}
		version = explicit
	}
	if version > MaxSeriesVersion {
		return "", 0, inputf("version %d exceeds the maximum of %d",
			version, MaxSeriesVersion)
	}
	return name, version, nil
}

// BranchName derives the branch holding one version of a series: the bare
// name for v1, the name with the version appended for later versions.
func BranchName(name string, version int) string {
	if version <= 1 {
		return name
	}
	return fmt.Sprintf("%s%d", name, version)
}

// validName rejects names that could not round-trip through branch
// derivation.
func validName(name string) error {
	if name == "" {
		return inputf("empty series name")
	}
	if strings.ContainsAny(name, " \t/") {
		return inputf("series name %q contains illegal characters", name)
	}
	if name[len(name)-1] >= '0' && name[len(name)-1] <= '9' {
		return inputf("series name %q must not end in digits", name)
	}
	return nil
}
