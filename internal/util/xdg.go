package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetXDGDataDir returns the XDG data directory for splitlab.
// It respects XDG_DATA_HOME if set, otherwise falls back to ~/.local/share/splitlab
func GetXDGDataDir() (string, error) {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "splitlab"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".local", "share", "splitlab"), nil
}

// DefaultDatabaseURL returns a libsql file URL inside the XDG data directory,
// creating the directory if needed.
func DefaultDatabaseURL() (string, error) {
	dir, err := GetXDGDataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return "file:" + filepath.Join(dir, "splitlab.db"), nil
}
