// SPDX-License-Identifier: MPL-2.0

// Package graph builds the module table of one compile pass.
//
// A Builder is created per pass and discarded with it. Build walks the
// require graph from an entry depth first: each module is read, transformed
// and rewritten exactly once per pass, however many entries reach it. A
// module already registered is only tagged with the requesting entry name.
package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/minipack/minipack/internal/dag"
	"github.com/minipack/minipack/internal/extract"
	"github.com/minipack/minipack/internal/loader"
	"github.com/minipack/minipack/internal/resolve"
)

const (
	// NotStarted means no record exists for the id in this pass.
	NotStarted Status = iota
	// InProgress means the record is registered and its dependencies are
	// still being built.
	InProgress
	// Complete means the module and everything it requires are in the table.
	Complete
)

// ErrRead is the sentinel wrapped by ReadError.
var ErrRead = errors.New("cannot read module")

type (
	// Status is the build state of a module id within one pass.
	Status int

	// Edge is a resolved dependency of a module.
	Edge = extract.Edge

	// Module is one record of the module table.
	Module struct {
		// ID is the canonical id, "./" plus the slash separated path
		// relative to the build context.
		ID string
		// Path is the absolute path the module was read from.
		Path string
		// Names lists the entries that reach this module, first seen first.
		Names []string
		// Dependencies are the distinct edges of the module in source order.
		Dependencies []Edge
		// Source is the transformed and rewritten module text.
		Source string
	}

	// ReadError reports a module file that could not be read.
	ReadError struct {
		Path string
		Err  error
	}

	// Config holds the collaborators of a Builder.
	Config struct {
		Fs       afero.Fs
		Context  string
		Resolver *resolve.Resolver
		Pipeline *loader.Pipeline
		Logger   *log.Logger
	}

	// Builder owns the state of one pass: the ordered module table, the
	// per-id status and the set of files touched.
	Builder struct {
		fs        afero.Fs
		context   string
		pipeline  *loader.Pipeline
		extractor *extract.Extractor
		logger    *log.Logger

		table  []*Module
		byID   map[string]*Module
		status map[string]Status

		files   []string
		fileSet map[string]bool
	}
)

// String returns the lower case name of the status.
func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case InProgress:
		return "in-progress"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Error implements the error interface.
func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

// Unwrap exposes ErrRead and the underlying cause.
func (e *ReadError) Unwrap() []error {
	return []error{ErrRead, e.Err}
}

// HasName reports whether entry reaches the module.
func (m *Module) HasName(entry string) bool {
	return slices.Contains(m.Names, entry)
}

// NewBuilder returns an empty Builder. A nil Logger discards output.
func NewBuilder(cfg Config) *Builder {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Builder{
		fs:        cfg.Fs,
		context:   cfg.Context,
		pipeline:  cfg.Pipeline,
		extractor: extract.New(cfg.Resolver, cfg.Context),
		logger:    logger,
		byID:      make(map[string]*Module),
		status:    make(map[string]Status),
		fileSet:   make(map[string]bool),
	}
}

// Build adds the module at path, and everything it requires, to the table
// on behalf of entry, and returns its record.
//
// A module that is already in progress or complete is not read again. The
// entry name is added to its Names and, for complete modules, to every
// module reachable through its recorded edges. A require cycle therefore
// ends at the first module seen twice.
func (b *Builder) Build(ctx context.Context, entry, path string) (*Module, error) {
	path = filepath.Clean(path)
	b.addFile(path)

	id, err := resolve.ModuleID(b.context, path)
	if err != nil {
		return nil, err
	}
	if m, ok := b.byID[id]; ok {
		b.tag(m, entry)
		return m, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := afero.ReadFile(b.fs, path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	source, err := b.pipeline.Transform(ctx, path, string(raw))
	if err != nil {
		return nil, err
	}
	res, err := b.extractor.Extract(path, source)
	if err != nil {
		return nil, err
	}

	m := &Module{
		ID:           id,
		Path:         path,
		Names:        []string{entry},
		Dependencies: res.Edges,
		Source:       res.Source,
	}
	b.table = append(b.table, m)
	b.byID[id] = m
	b.status[id] = InProgress
	b.logger.Debug("module", "id", id, "entry", entry, "deps", len(res.Edges))

	for _, dep := range m.Dependencies {
		if _, err := b.Build(ctx, entry, dep.Path); err != nil {
			return nil, err
		}
	}

	b.status[id] = Complete
	return m, nil
}

// tag adds entry to m and, when m is complete, to the modules it requires.
// In-progress modules only take the name: their dependencies are still being
// built by the caller further up the stack.
func (b *Builder) tag(m *Module, entry string) {
	if m.HasName(entry) {
		return
	}
	m.Names = append(m.Names, entry)
	if b.status[m.ID] != Complete {
		return
	}
	for _, dep := range m.Dependencies {
		if next, ok := b.byID[dep.ID]; ok {
			b.tag(next, entry)
		}
	}
}

func (b *Builder) addFile(path string) {
	if b.fileSet[path] {
		return
	}
	b.fileSet[path] = true
	b.files = append(b.files, path)
}

// Modules returns the module table in insertion order.
func (b *Builder) Modules() []*Module {
	return slices.Clone(b.table)
}

// Module returns the record registered under id.
func (b *Builder) Module(id string) (*Module, bool) {
	m, ok := b.byID[id]
	return m, ok
}

// Status returns the build state of id in this pass.
func (b *Builder) Status(id string) Status {
	return b.status[id]
}

// Files returns every absolute path touched by the pass, first touched first.
func (b *Builder) Files() []string {
	return slices.Clone(b.files)
}

// Order returns the module ids with every module after the modules it
// requires. On a require cycle the ids that could be ordered are returned
// together with a *dag.CycleError.
func (b *Builder) Order() ([]string, error) {
	g := dag.New()
	for _, m := range b.table {
		g.AddNode(m.ID)
		for _, dep := range m.Dependencies {
			g.AddEdge(dep.ID, m.ID)
		}
	}
	return g.TopologicalSort()
}
