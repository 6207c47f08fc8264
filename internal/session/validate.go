package session

import (
	"fmt"
	"regexp"
)

// Session names become directory names under the sessions root, so the
// alphabet is restricted to characters that are safe in paths everywhere.
var validName = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName reports whether name is usable as a session identifier:
// 1 to 64 characters, lowercase letters, digits, '-' and '_' only.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("session name %q: want 1-64 chars of [a-z0-9_-]", name)
	}
	return nil
}
