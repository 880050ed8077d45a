// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

// Files maps slash separated paths (relative to a project root) to contents.
type Files map[string]string

// MemProject creates an in-memory filesystem containing files under root
// and returns it. The root is created even when files is empty.
//
// Usage:
//
//	fs := testutil.MemProject(t, "/proj", testutil.Files{
//	    "src/index.js": "require('./a')",
//	    "src/a.js":     "module.exports = 42",
//	})
func MemProject(t testing.TB, root string, files Files) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	WriteFiles(t, fs, root, files)
	return fs
}

// WriteFiles writes every entry of files below root on fs, creating parent
// directories as needed. The test fails immediately on any write error.
func WriteFiles(t testing.TB, fs afero.Fs, root string, files Files) {
	t.Helper()
	if err := fs.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", root, err)
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
}

// DiskProject writes files into a fresh temporary directory on the real
// filesystem and returns its path. Use it when a test needs real OS events
// (watchers) or external processes.
func DiskProject(t testing.TB, files Files) string {
	t.Helper()
	root := t.TempDir()
	WriteFiles(t, afero.NewOsFs(), root, files)
	return root
}

// MustReadFile reads path from fs, failing the test on error.
func MustReadFile(t testing.TB, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// MustNotExist fails the test when path exists on fs.
func MustNotExist(t testing.TB, fs afero.Fs, path string) {
	t.Helper()
	if _, err := fs.Stat(path); err == nil {
		t.Fatalf("expected %s not to exist", path)
	} else if !os.IsNotExist(err) {
		t.Fatalf("stat %s: %v", path, err)
	}
}
