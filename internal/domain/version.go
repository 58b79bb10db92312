package domain

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ParseEngineVersion accepts strict semantic versions such as "1.2.0".
func ParseEngineVersion(v string) (*semver.Version, error) {
	sv, err := semver.StrictNewVersion(v)
	if err != nil {
		return nil, fmt.Errorf("engine version %q: %w", v, err)
	}
	return sv, nil
}

// IsStale reports whether a snapshot stamped with `recorded` was produced by an
// older rule set than `current`. Unparseable stamps are treated as stale.
func IsStale(recorded, current string) bool {
	rv, err := ParseEngineVersion(recorded)
	if err != nil {
		return true
	}
	cv, err := ParseEngineVersion(current)
	if err != nil {
		return false
	}
	return rv.LessThan(cv)
}
