package paths

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.chatnotify, or $CHATNOTIFY_HOME when set.
func BaseDir() string {
	if dir := os.Getenv("CHATNOTIFY_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chatnotify")
}

// Dir returns the profile-specific runtime directory.
func Dir(profile string) string {
	return filepath.Join(BaseDir(), "profiles", profile)
}

// SocketPath returns the worker's gRPC socket path.
func SocketPath(profile string) string {
	return filepath.Join(Dir(profile), "worker.sock")
}

// LockPath returns the lock file path for a profile.
func LockPath(profile string) string {
	return filepath.Join(Dir(profile), "LOCK")
}

// JournalPath returns the notification journal database path.
func JournalPath(profile string) string {
	return filepath.Join(Dir(profile), "journal.db")
}

// LogDir returns the log directory for a profile.
func LogDir(profile string) string {
	return filepath.Join(Dir(profile), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(profile string) string {
	return filepath.Join(LogDir(profile), "chatnotifyd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with owner-only permissions.
func EnsureDir(profile string) error {
	for _, d := range []string{Dir(profile), LogDir(profile)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
