package session

import (
	"fmt"

	"github.com/matheus3301/telesync/internal/config"
)

// DefaultName is used when neither a flag nor the config names a session.
const DefaultName = "main"

// Resolve picks the session a binary works on: the flag value, then the
// config's default_session, then DefaultName. The result is validated. A
// config file that exists but cannot be decoded is an error, not a silent
// fallback to DefaultName.
func Resolve(flagValue string) (string, error) {
	name := flagValue
	if name == "" {
		cfg, err := config.LoadOrDefault(ConfigPath())
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", config.ErrMalformed, ConfigPath(), err)
		}
		name = cfg.DefaultSession
	}
	if name == "" {
		name = DefaultName
	}
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}
