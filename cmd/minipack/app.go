// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/minipack/minipack/internal/config"
)

type (
	// App wires the services shared by all commands. Command handlers receive
	// an App and never touch os.Stdout, os.Stderr or the OS filesystem
	// directly.
	App struct {
		fs      afero.Fs
		config  config.Provider
		dir     string
		stdout  io.Writer
		stderr  io.Writer
		verbose bool
		cfgPath string
	}

	// Dependencies are the injection points for NewApp. Nil fields are
	// replaced with production defaults.
	Dependencies struct {
		Fs     afero.Fs
		Config config.Provider
		// Dir is the directory config discovery starts in. The working
		// directory is used when empty.
		Dir    string
		Stdout io.Writer
		Stderr io.Writer
	}
)

// NewApp builds an App from deps.
func NewApp(deps Dependencies) *App {
	app := &App{
		fs:     deps.Fs,
		config: deps.Config,
		dir:    deps.Dir,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
	if app.fs == nil {
		app.fs = afero.NewOsFs()
	}
	if app.config == nil {
		app.config = config.NewProvider(app.fs)
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// loadConfig loads the configuration honoring --config and the given
// key=value overrides.
func (a *App) loadConfig(ctx context.Context, overrides []string) (*config.Config, error) {
	return a.config.Load(ctx, config.LoadOptions{
		ConfigFilePath: a.cfgPath,
		Dir:            a.dir,
		Overrides:      overrides,
	})
}

// logger returns the CLI logger writing to stderr; --verbose enables debug
// output.
func (a *App) logger() *log.Logger {
	level := log.InfoLevel
	if a.verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{
		Prefix: config.AppName,
		Level:  level,
	})
}
