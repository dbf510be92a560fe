package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ErrMalformed marks configuration that cannot start a session.
var ErrMalformed = errors.New("config: malformed configuration")

// Config represents the global ~/.telesync/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	Language       string `toml:"language"`
	LogLevel       string `toml:"log_level"`

	API    API    `toml:"api"`
	Device Device `toml:"device"`
	Sync   Sync   `toml:"sync"`
}

// API holds the application credentials sent to the backend.
type API struct {
	ID   int32  `toml:"id"`
	Hash string `toml:"hash"`
}

// Device describes this client to the backend.
type Device struct {
	Model              string `toml:"model"`
	SystemVersion      string `toml:"system_version"`
	ApplicationVersion string `toml:"application_version"`
}

// Sync tunes the session layer.
type Sync struct {
	RetryBudget        int  `toml:"retry_budget"`
	PageSize           int  `toml:"page_size"`
	LoadChatsLimit     int  `toml:"load_chats_limit"`
	UseMessageDatabase bool `toml:"use_message_database"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Language: "en",
		LogLevel: "info",
		Device: Device{
			Model:              "telesync",
			SystemVersion:      "linux",
			ApplicationVersion: "0.1.0",
		},
		Sync: Sync{
			RetryBudget:        3,
			PageSize:           10,
			LoadChatsLimit:     15,
			UseMessageDatabase: true,
		},
	}
}

// Load reads config from the given path over Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load that treats a missing file as Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
