package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// KeySize is the length of a generated database encryption key.
const KeySize = 32

// Account is the per-session account.toml.
type Account struct {
	EncryptionKey string `toml:"encryption_key"`
}

// LoadAccount reads an account file.
func LoadAccount(path string) (*Account, error) {
	var acc Account
	if _, err := toml.DecodeFile(path, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// LoadOrCreateAccount reads the account file, creating it with a fresh
// random key when it does not exist yet.
func LoadOrCreateAccount(path string) (*Account, error) {
	acc, err := LoadAccount(path)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate encryption key: %w", err)
	}
	acc = &Account{EncryptionKey: hex.EncodeToString(key)}
	if err := Save(path, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// Key decodes the hex encryption key. Missing, odd-length or non-hex keys
// are malformed.
func (a *Account) Key() ([]byte, error) {
	s := strings.TrimSpace(a.EncryptionKey)
	if s == "" {
		return nil, fmt.Errorf("%w: encryption key is missing", ErrMalformed)
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: encryption key: %w", ErrMalformed, err)
	}
	return key, nil
}

// Validate checks the credentials needed to start a session.
func (c *Config) Validate() error {
	if c.API.ID <= 0 {
		return fmt.Errorf("%w: api.id must be positive", ErrMalformed)
	}
	if strings.TrimSpace(c.API.Hash) == "" {
		return fmt.Errorf("%w: api.hash is missing", ErrMalformed)
	}
	return nil
}
