package paths

import (
	"fmt"
	"regexp"
)

const DefaultProfile = "main"

var profileRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateProfile checks that name is usable as a directory name under BaseDir.
func ValidateProfile(name string) error {
	if !profileRegexp.MatchString(name) {
		return fmt.Errorf("invalid profile %q: must match ^[a-z0-9_-]{1,64}$", name)
	}
	return nil
}

// ResolveProfile picks the active profile using precedence:
// 1. flagOverride (--profile flag)
// 2. configured default_profile
// 3. "main"
func ResolveProfile(flagOverride, configured string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if configured != "" {
		return configured
	}
	return DefaultProfile
}
