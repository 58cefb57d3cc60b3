package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TempDir creates a temporary directory for testing.
func TempDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "kvbtree-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// PagePaths returns a fresh page-file and WAL path pair under a temp dir.
func PagePaths(t *testing.T) (pagePath, walPath string) {
	dir := TempDir(t)
	return filepath.Join(dir, "data.db"), filepath.Join(dir, "data.wal")
}
