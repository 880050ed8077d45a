// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/minipack/minipack/internal/chunk"
	"github.com/minipack/minipack/internal/codegen"
	"github.com/minipack/minipack/internal/config"
	"github.com/minipack/minipack/internal/dag"
	"github.com/minipack/minipack/internal/graph"
	"github.com/minipack/minipack/internal/loader"
	"github.com/minipack/minipack/internal/resolve"
)

// ErrWrite is the sentinel wrapped by WriteError.
var ErrWrite = errors.New("cannot write asset")

type (
	// Hook is an ordered list of callbacks.
	Hook struct {
		fns []func()
	}

	// Hooks are the lifecycle points plugins can subscribe to.
	Hooks struct {
		// BeforeRun fires before every pass.
		BeforeRun Hook
		// AfterDone fires after every pass, including failed ones.
		AfterDone Hook
	}

	// Option configures a Compiler.
	Option func(*Compiler)

	// Asset is one generated output file.
	Asset struct {
		// Name is the entry the asset was generated for.
		Name string
		// Filename is the output filename relative to the output directory.
		Filename string
		// Content is the complete generated program.
		Content string
	}

	// WriteError reports an asset that could not be written.
	WriteError struct {
		Path string
		Err  error
	}

	// Compiler runs compile passes for one configuration.
	Compiler struct {
		Hooks Hooks

		cfg      *config.Config
		fs       afero.Fs
		logger   *log.Logger
		registry *loader.Registry
		plugins  []Plugin
		pipeline *loader.Pipeline

		mu      sync.Mutex
		last    *Stats
		lastErr error
	}
)

// Tap appends fn to the hook.
func (h *Hook) Tap(fn func()) {
	h.fns = append(h.fns, fn)
}

// Len returns the number of registered callbacks.
func (h *Hook) Len() int { return len(h.fns) }

func (h *Hook) call() {
	for _, fn := range h.fns {
		fn()
	}
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

// Unwrap returns ErrWrite and the underlying cause.
func (e *WriteError) Unwrap() []error {
	return []error{ErrWrite, e.Err}
}

// WithFs sets the filesystem modules are read from and assets written to.
// The OS filesystem is used by default.
func WithFs(fs afero.Fs) Option {
	return func(c *Compiler) { c.fs = fs }
}

// WithLogger sets the logger. Output is discarded by default.
func WithLogger(logger *log.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

// WithRegistry sets the transform registry rules are looked up in.
func WithRegistry(reg *loader.Registry) Option {
	return func(c *Compiler) { c.registry = reg }
}

// WithPlugins applies plugins after the ones named in the configuration.
func WithPlugins(plugins ...Plugin) Option {
	return func(c *Compiler) { c.plugins = append(c.plugins, plugins...) }
}

// New validates cfg, compiles its loader rules and applies its plugins.
func New(cfg *config.Config, opts ...Option) (*Compiler, error) {
	if cfg == nil {
		return nil, errors.New("compiler: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Compiler{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.fs == nil {
		c.fs = afero.NewOsFs()
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	if c.registry == nil {
		c.registry = loader.NewRegistry()
	}

	rules := make([]loader.Rule, 0, len(cfg.Module.Rules))
	for _, r := range cfg.Module.Rules {
		test, err := regexp.Compile(r.Test)
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", r.Test, err)
		}
		rules = append(rules, loader.Rule{Test: test, Use: r.Use})
	}
	pipeline, err := loader.NewPipeline(c.registry, rules)
	if err != nil {
		return nil, err
	}
	c.pipeline = pipeline

	named := make([]Plugin, 0, len(cfg.Plugins))
	for _, name := range cfg.Plugins {
		p, err := LookupPlugin(name)
		if err != nil {
			return nil, err
		}
		named = append(named, p)
	}
	for _, p := range append(named, c.plugins...) {
		p.Apply(c)
	}
	return c, nil
}

// Config returns the configuration the compiler was created with.
func (c *Compiler) Config() *config.Config { return c.cfg }

// Logger returns the compiler's logger.
func (c *Compiler) Logger() *log.Logger { return c.logger }

// Last returns the result of the most recent pass. Stats is nil before the
// first pass.
func (c *Compiler) Last() (*Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.lastErr
}

// Run performs one compile pass. Assets are written only when the whole
// pass succeeded. The returned Stats is non-nil even on failure and then
// carries the files the pass touched before it stopped.
func (c *Compiler) Run(ctx context.Context) (*Stats, error) {
	c.Hooks.BeforeRun.call()

	stats, err := c.pass(ctx)

	c.mu.Lock()
	c.last, c.lastErr = stats, err
	c.mu.Unlock()

	c.Hooks.AfterDone.call()
	return stats, err
}

func (c *Compiler) pass(ctx context.Context) (*Stats, error) {
	start := time.Now()
	builder := graph.NewBuilder(graph.Config{
		Fs:       c.fs,
		Context:  c.cfg.Context,
		Resolver: resolve.New(c.fs, c.cfg.Resolve.Extensions),
		Pipeline: c.pipeline,
		Logger:   c.logger,
	})
	stats := &Stats{}
	finish := func(err error) (*Stats, error) {
		stats.FileDependencies = builder.Files()
		stats.Duration = time.Since(start)
		return stats, err
	}

	entries := c.cfg.Entries()
	chunkEntries := make([]chunk.Entry, 0, len(entries))
	for _, e := range entries {
		m, err := builder.Build(ctx, e.Name, e.Path)
		if err != nil {
			return finish(err)
		}
		chunkEntries = append(chunkEntries, chunk.Entry{Name: e.Name, ID: m.ID})
	}

	order, err := builder.Order()
	var cycleErr *dag.CycleError
	if errors.As(err, &cycleErr) {
		c.logger.Warn("require cycle", "cycle", strings.Join(cycleErr.Cycle, " -> "))
		stats.Cycle = cycleErr.Cycle
	}
	stats.Order = order

	table := builder.Modules()
	chunks, err := chunk.Assemble(chunkEntries, table)
	if err != nil {
		return finish(err)
	}

	assets := make([]Asset, 0, len(chunks))
	for _, ch := range chunks {
		content, err := codegen.Generate(ch)
		if err != nil {
			return finish(err)
		}
		assets = append(assets, Asset{Name: ch.Name, Filename: c.cfg.AssetName(ch.Name), Content: content})
	}

	if err := ctx.Err(); err != nil {
		return finish(fmt.Errorf("compile canceled: %w", err))
	}
	paths, err := c.emit(assets)
	if err != nil {
		return finish(err)
	}

	stats.fill(table, chunks, assets, paths)
	out, err := finish(nil)
	c.logger.Debug("pass complete",
		"modules", len(stats.Modules), "assets", len(stats.Assets), "duration", stats.Duration)
	return out, err
}

// emit writes every asset to a temporary file first and renames them into
// place once all writes succeeded. It returns the absolute asset paths.
func (c *Compiler) emit(assets []Asset) ([]string, error) {
	outDir := c.cfg.OutputDir()
	targets := make([]string, len(assets))
	temps := make([]string, 0, len(assets))
	cleanup := func() {
		for _, tmp := range temps {
			if err := c.fs.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
				c.logger.Warn("remove temporary asset", "path", tmp, "err", err)
			}
		}
	}

	for i, a := range assets {
		target := filepath.Join(outDir, filepath.FromSlash(a.Filename))
		targets[i] = target
		tmp, err := c.writeTemp(target, a.Content)
		if err != nil {
			cleanup()
			return nil, &WriteError{Path: target, Err: err}
		}
		temps = append(temps, tmp)
	}

	for i, tmp := range temps {
		if err := c.fs.Rename(tmp, targets[i]); err != nil {
			cleanup()
			return nil, &WriteError{Path: targets[i], Err: err}
		}
	}
	return targets, nil
}

func (c *Compiler) writeTemp(target, content string) (string, error) {
	dir := filepath.Dir(target)
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f, err := afero.TempFile(c.fs, dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return "", err
	}
	if _, err := io.WriteString(f, content); err != nil {
		_ = f.Close()
		_ = c.fs.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = c.fs.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
