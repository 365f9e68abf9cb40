package services

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// CleanPath validates a caller supplied relative path or slug. It rejects
// empty input, NUL bytes and any ".." token, and returns the path with
// forward slashes and no leading or trailing separator.
func CleanPath(p string) (string, error) {
	if strings.ContainsRune(p, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if strings.Contains(p, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	clean := strings.Trim(path.Clean("/"+p), "/")
	if clean == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	return clean, nil
}

// SingleValue unwraps a query parameter that must be given exactly once.
func SingleValue(values []string) (string, error) {
	if len(values) != 1 {
		return "", fmt.Errorf("%w: expected one value, got %d", ErrInvalidPath, len(values))
	}
	return CleanPath(values[0])
}

// SafeJoin joins a cleaned relative path below root.
func SafeJoin(root, rel string) (string, error) {
	clean, err := CleanPath(rel)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, filepath.FromSlash(clean)), nil
}
