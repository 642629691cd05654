package profile

import (
	"errors"
	"fmt"
	"regexp"
)

const maxNameLen = 64

// Profile names end up in directory paths, so the charset is kept
// deliberately narrow.
var nameChars = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidateName checks that name is usable as a profile name.
func ValidateName(name string) error {
	if name == "" {
		return errors.New("profile name is empty")
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("profile name %q exceeds %d characters", name, maxNameLen)
	}
	if !nameChars.MatchString(name) {
		return fmt.Errorf("profile name %q may only contain lowercase letters, digits, '-' and '_'", name)
	}
	return nil
}
