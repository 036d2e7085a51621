package filesystem

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/doeshing/sentry-go/internal/domain"
)

// UserHomeDir returns the current user's home directory.
// If the home directory cannot be determined, it returns "." as a fallback.
func UserHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// SentryHome is the directory holding the global config, session logs and
// the audit database. SENTRY_HOME overrides ~/.sentry.
func SentryHome() string {
	if dir := strings.TrimSpace(os.Getenv(domain.EnvHome)); dir != "" {
		return ExpandHome(dir)
	}
	return filepath.Join(UserHomeDir(), ".sentry")
}

// ExpandHome resolves a leading ~/ against the home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return UserHomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(UserHomeDir(), path[2:])
	}
	return path
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
