// Package pathutil confines file writes requested by remote callers to a
// known directory.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExportDirName is the export directory inside ~/.cascadelab.
const ExportDirName = "exports"

// RedactPath shortens path to .../<parent>/<base> for error messages.
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	base := filepath.Base(cleaned)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// ValidatePath reports whether path, after cleaning and symlink resolution
// of its existing ancestors, lies inside one of allowedDirs.
func ValidatePath(path string, allowedDirs []string) error {
	if path == "" {
		return fmt.Errorf("path validation failed: path is empty")
	}
	if len(allowedDirs) == 0 {
		return fmt.Errorf("path validation failed: no allowed directories configured")
	}
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("path validation failed: path contains null byte")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("path validation failed: cannot resolve absolute path: %w", err)
	}

	// The file may not exist yet, so only its directory is resolved.
	resolvedDir, err := resolveExistingParent(filepath.Dir(absPath))
	if err != nil {
		return fmt.Errorf("path validation failed: cannot resolve parent directory: %w", err)
	}
	resolved := filepath.Join(resolvedDir, filepath.Base(absPath))

	for _, dir := range allowedDirs {
		allowedAbs, err := filepath.Abs(filepath.Clean(dir))
		if err != nil {
			continue
		}
		allowed, err := resolveExistingParent(allowedAbs)
		if err != nil {
			continue
		}
		if isSubpath(resolved, allowed) {
			return nil
		}
	}

	return fmt.Errorf("path validation failed: %q is outside allowed directories", RedactPath(absPath))
}

// ResolveIn joins a caller-supplied file name onto dir and validates that
// the result stays inside dir. Absolute names are accepted only when they
// already point inside dir.
func ResolveIn(dir, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("path validation failed: path is empty")
	}
	path := name
	if !filepath.IsAbs(name) {
		path = filepath.Join(dir, name)
	}
	if err := ValidatePath(path, []string{dir}); err != nil {
		return "", err
	}
	if filepath.Clean(path) == filepath.Clean(dir) {
		return "", fmt.Errorf("path validation failed: %q names the export directory itself", RedactPath(path))
	}
	return path, nil
}

// DefaultExportDir returns ~/.cascadelab/exports.
func DefaultExportDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cascadelab", ExportDirName), nil
}

// resolveExistingParent resolves symlinks on the deepest existing ancestor
// of dir and re-appends the missing tail.
func resolveExistingParent(dir string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
	}
	resolvedParent, err := resolveExistingParent(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

// isSubpath reports whether path equals base or lies beneath it.
func isSubpath(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, base+string(os.PathSeparator))
}
