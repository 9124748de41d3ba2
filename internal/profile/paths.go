// Package profile resolves named mirror profiles and their on-disk layout
// under ~/.cmirror. Each profile owns its own database, socket, lock and
// logs, so several remote accounts can be mirrored side by side.
package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.cmirror.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cmirror")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// SocketPath returns the admin API socket path for a profile.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "daemon.sock")
}

// LockPath returns the daemon lock file path for a profile.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// DBPath returns the mirror database path for a profile.
func DBPath(name string) string {
	return filepath.Join(Dir(name), "mirror.db")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path for a profile.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "cmirrord.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
