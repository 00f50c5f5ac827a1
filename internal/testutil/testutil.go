// Package testutil builds synthetic slices and temporary files for tests.
package testutil

import "os"

// EnsureDir creates path and its parents for test output.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists reports whether something exists at path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
