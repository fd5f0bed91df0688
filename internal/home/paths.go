package home

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.zapcrm, or the override if non-empty.
func BaseDir(override string) string {
	if override != "" {
		return override
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".zapcrm")
}

// TenantDir returns the tenant-specific directory under the base dir.
func TenantDir(base, tenantID string) string {
	return filepath.Join(base, "tenants", tenantID)
}

// SessionDBPath returns the whatsmeow session.db path for a tenant.
func SessionDBPath(base, tenantID string) string {
	return filepath.Join(TenantDir(base, tenantID), "session.db")
}

// AppDBPath returns the app-owned zapcrm.db path.
func AppDBPath(base string) string {
	return filepath.Join(base, "zapcrm.db")
}

// LogDir returns the daemon log directory.
func LogDir(base string) string {
	return filepath.Join(base, "logs")
}

// LogPath returns the daemon log file path.
func LogPath(base string) string {
	return filepath.Join(LogDir(base), "zapcrmd.log")
}

// ConfigPath returns the config file path.
func ConfigPath(base string) string {
	return filepath.Join(base, "config.toml")
}

// EnsureDirs creates the base directory tree with proper permissions.
func EnsureDirs(base string, tenantIDs []string) error {
	dirs := []string{base, LogDir(base)}
	for _, id := range tenantIDs {
		dirs = append(dirs, TenantDir(base, id))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
