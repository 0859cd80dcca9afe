package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DBFileName is the SQLite file name inside the cascadelab directory.
const DBFileName = "results.db"

// GlobalPath returns the path to the global .cascadelab directory.
// On Unix: ~/.cascadelab
// On Windows: %USERPROFILE%\.cascadelab
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cascadelab"), nil
}

// DefaultDBPath returns ~/.cascadelab/results.db.
func DefaultDBPath() (string, error) {
	dir, err := GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DBFileName), nil
}
