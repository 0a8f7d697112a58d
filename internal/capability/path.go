package capability

import (
	"os"
	"path/filepath"
)

// statDir reports whether path exists and is a directory. directory.root
// validates this before accepting a new root (spec.md section 4.3); the
// actual directory walk is left to the external filesystem collaborator.
func statDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// canonicalizePath resolves path to an absolute, symlink-free form, so
// directory.root never persists a relative or symlinked root (spec.md
// section 4.3, "a canonicalized root path").
func canonicalizePath(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(resolved)
}
