package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultSession = "work"
	cfg.API = API{ID: 12345, Hash: "abcdef"}
	cfg.Sync.PageSize = 20
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultSession != "work" || loaded.API.ID != 12345 || loaded.API.Hash != "abcdef" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Sync.PageSize != 20 || loaded.Sync.RetryBudget != 3 {
		t.Errorf("sync = %+v, want page size 20 and default budget", loaded.Sync)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("default_session = \"work\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Sync.LoadChatsLimit != 15 || loaded.Language != "en" {
		t.Errorf("loaded = %+v, want defaults", loaded)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load("/nonexistent/config.toml"); err == nil {
		t.Error("Load() expected error for missing file")
	}
	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Sync.RetryBudget != 3 {
		t.Errorf("RetryBudget = %d, want 3", cfg.Sync.RetryBudget)
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := Save(path, &Config{DefaultSession: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		api     API
		wantErr bool
	}{
		{"valid", API{ID: 1, Hash: "h"}, false},
		{"missing id", API{Hash: "h"}, true},
		{"missing hash", API{ID: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.API = tt.api
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMalformed) {
				t.Errorf("Validate() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestAccountKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    int
		wantErr bool
	}{
		{"valid", "00ff10", 3, false},
		{"surrounding space", " 0a0b \n", 2, false},
		{"missing", "", 0, true},
		{"odd length", "abc", 0, true},
		{"not hex", "zz", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := (&Account{EncryptionKey: tt.key}).Key()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Key() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMalformed) {
				t.Errorf("Key() error = %v, want ErrMalformed", err)
			}
			if len(key) != tt.want {
				t.Errorf("len(key) = %d, want %d", len(key), tt.want)
			}
		})
	}
}

func TestLoadOrCreateAccount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions", "main", "account.toml")

	first, err := LoadOrCreateAccount(path)
	if err != nil {
		t.Fatalf("LoadOrCreateAccount() error = %v", err)
	}
	key, err := first.Key()
	if err != nil || len(key) != KeySize {
		t.Fatalf("generated key = %d bytes, err %v", len(key), err)
	}

	second, err := LoadOrCreateAccount(path)
	if err != nil {
		t.Fatal(err)
	}
	if second.EncryptionKey != first.EncryptionKey {
		t.Error("second load generated a new key")
	}
}
