package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.telesync.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".telesync")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// SocketPath returns the UDS socket path for a session.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// AccountPath returns the per-session account.toml holding the encryption key.
func AccountPath(name string) string {
	return filepath.Join(Dir(name), "account.toml")
}

// DatabaseDir returns the backend's storage directory.
func DatabaseDir(name string) string {
	return filepath.Join(Dir(name), "tdlib")
}

// FilesDir returns where downloaded media is written.
func FilesDir(name string) string {
	return filepath.Join(Dir(name), "files")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "telesyncd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), DatabaseDir(name), FilesDir(name), LogDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
