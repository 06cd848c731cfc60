package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates dir and its parents for downloaded workbooks and run artifacts.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// SafeJoin places name directly under root. Directory components are dropped,
// and ".", ".." or an empty name resolve to root itself.
func SafeJoin(root, name string) string {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." || base == ".." {
		return root
	}
	return filepath.Join(root, base)
}
