// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

// ErrUnknownPlugin is returned for a plugin name with no built-in
// implementation.
var ErrUnknownPlugin = errors.New("unknown plugin")

type (
	// Plugin subscribes to compiler hooks.
	Plugin interface {
		Apply(c *Compiler)
	}

	// PluginFunc adapts a function to the Plugin interface.
	PluginFunc func(c *Compiler)

	// timerPlugin logs the wall time of every pass.
	timerPlugin struct {
		start time.Time
	}
)

// Apply calls f(c).
func (f PluginFunc) Apply(c *Compiler) { f(c) }

var builtinPlugins = map[string]func() Plugin{
	"run-logger":  func() Plugin { return PluginFunc(applyRunLogger) },
	"done-logger": func() Plugin { return PluginFunc(applyDoneLogger) },
	"timer":       func() Plugin { return &timerPlugin{} },
}

// LookupPlugin returns a fresh instance of the named built-in plugin.
func LookupPlugin(name string) (Plugin, error) {
	factory, ok := builtinPlugins[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownPlugin, name, PluginNames())
	}
	return factory(), nil
}

// PluginNames returns the built-in plugin names, sorted.
func PluginNames() []string {
	return slices.Sorted(maps.Keys(builtinPlugins))
}

func applyRunLogger(c *Compiler) {
	c.Hooks.BeforeRun.Tap(func() {
		c.Logger().Info("compiling", "entries", len(c.Config().Entry))
	})
}

func applyDoneLogger(c *Compiler) {
	c.Hooks.AfterDone.Tap(func() {
		stats, err := c.Last()
		if err != nil {
			c.Logger().Error("compilation failed", "err", err)
			return
		}
		c.Logger().Info("compiled", "modules", len(stats.Modules), "assets", len(stats.Assets))
	})
}

func (p *timerPlugin) Apply(c *Compiler) {
	c.Hooks.BeforeRun.Tap(func() { p.start = time.Now() })
	c.Hooks.AfterDone.Tap(func() {
		c.Logger().Info("pass finished", "elapsed", time.Since(p.start).Round(time.Millisecond))
	})
}
