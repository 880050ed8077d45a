// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"context"
	"slices"

	"github.com/minipack/minipack/internal/watch"
)

// Watch runs a pass, then recompiles whenever a file touched by the latest
// pass changes. onPass, when non-nil, receives the result of every pass.
// Failed passes never stop watching. Watch blocks until ctx is cancelled
// and returns nil then, or the watcher's fatal error.
func (c *Compiler) Watch(ctx context.Context, onPass func(*Stats, error)) error {
	report := func(stats *Stats, err error) {
		if onPass != nil {
			onPass(stats, err)
		}
	}

	stats, err := c.Run(ctx)
	report(stats, err)
	if ctx.Err() != nil {
		return nil
	}

	var w *watch.Watcher
	w, err = watch.New(watch.Config{
		Files:    c.watchFiles(stats),
		Ignore:   c.cfg.Watch.Ignore,
		Debounce: c.cfg.Watch.Debounce,
		BaseDir:  c.cfg.Context,
		Logger:   c.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			c.logger.Info("change detected", "files", changed)
			stats, err := c.Run(ctx)
			report(stats, err)
			return w.SetFiles(c.watchFiles(stats))
		},
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// watchFiles returns the files of stats plus the entry paths, so a pass
// that failed before reading its entries still recovers once they appear.
func (c *Compiler) watchFiles(stats *Stats) []string {
	var files []string
	if stats != nil {
		files = slices.Clone(stats.FileDependencies)
	}
	for _, e := range c.cfg.Entries() {
		if !slices.Contains(files, e.Path) {
			files = append(files, e.Path)
		}
	}
	return files
}
