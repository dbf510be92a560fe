package session

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidName marks a session name that cannot name a session directory.
var ErrInvalidName = errors.New("invalid session name")

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that name is 1 to 64 lowercase letters, digits,
// hyphens or underscores. Anything else could escape the sessions directory.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("%w %q: use 1-64 of a-z 0-9 _ -", ErrInvalidName, name)
	}
	return nil
}
