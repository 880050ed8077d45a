// SPDX-License-Identifier: MPL-2.0

// Package resolve maps require specifiers to files on disk.
//
// Resolution follows a small subset of the node algorithm: relative and
// absolute specifiers are joined with the requiring module's directory, bare
// specifiers are searched for in node_modules directories walking up from
// that directory. A candidate path is tried as-is first, then with every
// configured extension in order. Directories resolve through the "main"
// field of their package.json, or an index file.
package resolve

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrNotFound is the sentinel wrapped by ResolutionError.
var ErrNotFound = errors.New("module not found")

type (
	// ResolutionError reports a specifier that matched no existing file.
	// It wraps ErrNotFound for errors.Is() compatibility.
	ResolutionError struct {
		// Request is the specifier as written in the requiring module.
		Request string
		// From is the directory the specifier was resolved against.
		From string
		// Tried lists every candidate path that was probed, in order.
		Tried []string
	}

	// Resolver resolves specifiers against a filesystem. A Resolver memoizes
	// lookups and is meant to live for a single build pass.
	Resolver struct {
		fs         afero.Fs
		extensions []string
		memo       map[string]lookup
	}

	lookup struct {
		path string
		ok   bool
	}

	packageJSON struct {
		Main string `json:"main"`
	}
)

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %q from %s (tried %s)", e.Request, e.From, strings.Join(e.Tried, ", "))
}

// Unwrap returns ErrNotFound for errors.Is() compatibility.
func (e *ResolutionError) Unwrap() error {
	return ErrNotFound
}

// New creates a Resolver probing the given extensions in order. Extensions
// are used verbatim, so they normally carry their leading dot (".js").
func New(fs afero.Fs, extensions []string) *Resolver {
	return &Resolver{
		fs:         fs,
		extensions: append([]string(nil), extensions...),
		memo:       make(map[string]lookup),
	}
}

// Extensions returns a copy of the configured extension list.
func (r *Resolver) Extensions() []string {
	return append([]string(nil), r.extensions...)
}

// Lookup tries base unmodified, then base with each extension appended. It
// returns the first candidate that is a regular file.
func (r *Resolver) Lookup(base string) (string, bool) {
	if hit, ok := r.memo[base]; ok {
		return hit.path, hit.ok
	}
	path, ok := r.lookup(base)
	r.memo[base] = lookup{path: path, ok: ok}
	return path, ok
}

func (r *Resolver) lookup(base string) (string, bool) {
	if r.isFile(base) {
		return base, true
	}
	for _, ext := range r.extensions {
		if candidate := base + ext; r.isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// Resolve resolves request as written in a module located in dir. The
// returned path is absolute and cleaned when dir is absolute.
func (r *Resolver) Resolve(dir, request string) (string, error) {
	var tried []string
	for _, base := range r.bases(dir, request) {
		if path, ok := r.resolveBase(base, &tried); ok {
			return path, nil
		}
	}
	return "", &ResolutionError{Request: request, From: dir, Tried: tried}
}

// bases returns the candidate base paths for request, most specific first.
func (r *Resolver) bases(dir, request string) []string {
	if isPathRequest(request) {
		if filepath.IsAbs(request) {
			return []string{filepath.Clean(request)}
		}
		return []string{filepath.Join(dir, request)}
	}

	var bases []string
	for current := dir; ; {
		if filepath.Base(current) != "node_modules" {
			bases = append(bases, filepath.Join(current, "node_modules", request))
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return bases
}

func (r *Resolver) resolveBase(base string, tried *[]string) (string, bool) {
	*tried = append(*tried, base)
	if path, ok := r.Lookup(base); ok {
		return path, true
	}
	if !r.isDir(base) {
		return "", false
	}

	if main := r.packageMain(base); main != "" {
		target := filepath.Join(base, main)
		*tried = append(*tried, target)
		if path, ok := r.Lookup(target); ok {
			return path, true
		}
		if r.isDir(target) {
			index := filepath.Join(target, "index")
			*tried = append(*tried, index)
			if path, ok := r.Lookup(index); ok {
				return path, true
			}
		}
	}

	index := filepath.Join(base, "index")
	*tried = append(*tried, index)
	return r.Lookup(index)
}

// packageMain returns the "main" field of dir/package.json, or "" when the
// manifest is missing or unreadable.
func (r *Resolver) packageMain(dir string) string {
	data, err := afero.ReadFile(r.fs, filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}
	return pkg.Main
}

func (r *Resolver) isFile(path string) bool {
	info, err := r.fs.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (r *Resolver) isDir(path string) bool {
	info, err := r.fs.Stat(path)
	return err == nil && info.IsDir()
}

// isPathRequest reports whether request addresses a file path rather than a
// package name.
func isPathRequest(request string) bool {
	return request == "." || request == ".." ||
		strings.HasPrefix(request, "./") ||
		strings.HasPrefix(request, "../") ||
		filepath.IsAbs(request)
}

// ModuleID returns the canonical id of path relative to the build context:
// a slash separated relative path prefixed with "./".
func ModuleID(context, path string) (string, error) {
	rel, err := filepath.Rel(context, path)
	if err != nil {
		return "", fmt.Errorf("module id for %s: %w", path, err)
	}
	return "./" + filepath.ToSlash(rel), nil
}
