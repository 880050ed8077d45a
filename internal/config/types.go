// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

const (
	// DefaultEntryName is the entry name used when entry is a single path.
	DefaultEntryName = "main"
	// NamePlaceholder is replaced with the entry name in output.filename.
	NamePlaceholder = "[name]"

	// ModeDevelopment is the default mode.
	ModeDevelopment Mode = "development"
	// ModeProduction marks production builds.
	ModeProduction Mode = "production"
	// ModeNone disables mode specific defaults.
	ModeNone Mode = "none"
)

var (
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidOverride is returned for a malformed key=value argument.
	ErrInvalidOverride = errors.New("invalid override")
)

type (
	// Mode is informational; it is passed to plugins and printed in stats.
	Mode string

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds one build's configuration.
	Config struct {
		// Context is the directory module ids are relative to.
		Context string `json:"context" mapstructure:"context" toml:"context"`
		// Mode is informational.
		Mode Mode `json:"mode" mapstructure:"mode" toml:"mode"`
		// Entry maps entry names to paths, relative to Context.
		Entry map[string]string `json:"entry" mapstructure:"entry" toml:"entry"`
		// Output configures where assets are written.
		Output OutputConfig `json:"output" mapstructure:"output" toml:"output"`
		// Resolve configures path resolution.
		Resolve ResolveConfig `json:"resolve" mapstructure:"resolve" toml:"resolve"`
		// Module holds the transform rules.
		Module ModuleConfig `json:"module" mapstructure:"module" toml:"module"`
		// Plugins lists built-in plugins by name, applied in order.
		Plugins []string `json:"plugins" mapstructure:"plugins" toml:"plugins"`
		// Watch configures watch mode.
		Watch WatchConfig `json:"watch" mapstructure:"watch" toml:"watch"`
	}

	// OutputConfig configures asset output.
	OutputConfig struct {
		// Path is the output directory, relative to Context when not absolute.
		Path string `json:"path" mapstructure:"path" toml:"path"`
		// Filename is the asset name pattern, usually containing [name].
		Filename string `json:"filename" mapstructure:"filename" toml:"filename"`
	}

	// ResolveConfig configures path resolution.
	ResolveConfig struct {
		Extensions []string `json:"extensions" mapstructure:"extensions" toml:"extensions"`
	}

	// ModuleConfig holds transform rules.
	ModuleConfig struct {
		Rules []RuleConfig `json:"rules" mapstructure:"rules" toml:"rules"`
	}

	// RuleConfig is one transform rule as written in the config file.
	RuleConfig struct {
		Test string   `json:"test" mapstructure:"test" toml:"test"`
		Use  []string `json:"use" mapstructure:"use" toml:"use"`
	}

	// WatchConfig configures watch mode.
	WatchConfig struct {
		// Debounce is the quiet period before a change batch triggers a pass.
		Debounce time.Duration `json:"debounce" mapstructure:"debounce" toml:"debounce"`
		// Ignore holds doublestar patterns for paths whose changes are dropped.
		Ignore []string `json:"ignore" mapstructure:"ignore" toml:"ignore"`
	}

	// EntryPoint is an entry resolved against Context.
	EntryPoint struct {
		Name string
		Path string
	}
)

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return fmt.Sprintf("invalid config: %v", e.FieldErrors[0])
	}
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, fe := range e.FieldErrors {
		msgs = append(msgs, fe.Error())
	}
	return fmt.Sprintf("invalid config: %d field error(s): %s", len(e.FieldErrors), strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// String returns the string representation of the Mode.
func (m Mode) String() string { return string(m) }

// DefaultConfig returns the default configuration. Context is left empty;
// loading fills it in from the config file location or working directory.
func DefaultConfig() *Config {
	return &Config{
		Mode:  ModeDevelopment,
		Entry: map[string]string{DefaultEntryName: "./src/index.js"},
		Output: OutputConfig{
			Path:     "dist",
			Filename: NamePlaceholder + ".js",
		},
		Resolve: ResolveConfig{
			Extensions: []string{".js", ".json"},
		},
		Module: ModuleConfig{
			Rules: []RuleConfig{{Test: `\.json$`, Use: []string{"esbuild"}}},
		},
		Plugins: []string{},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
			Ignore:   []string{"**/node_modules/**"},
		},
	}
}

// Validate checks the constraints the schema cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.Context == "" {
		errs = append(errs, errors.New("context: must not be empty"))
	} else if !filepath.IsAbs(c.Context) {
		errs = append(errs, fmt.Errorf("context: %q must be absolute", c.Context))
	}
	if len(c.Entry) == 0 {
		errs = append(errs, errors.New("entry: at least one entry is required"))
	}
	for name, path := range c.Entry {
		if strings.TrimSpace(path) == "" {
			errs = append(errs, fmt.Errorf("entry.%s: path must not be empty", name))
		}
	}
	if c.Output.Filename == "" {
		errs = append(errs, errors.New("output.filename: must not be empty"))
	} else if len(c.Entry) > 1 && !strings.Contains(c.Output.Filename, NamePlaceholder) {
		errs = append(errs, fmt.Errorf("output.filename: %q must contain %s when there are several entries", c.Output.Filename, NamePlaceholder))
	}
	for i, ext := range c.Resolve.Extensions {
		if len(ext) < 2 || !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("resolve.extensions[%d]: %q must be a dot followed by a suffix", i, ext))
		}
	}
	for i, rule := range c.Module.Rules {
		if _, err := regexp.Compile(rule.Test); err != nil {
			errs = append(errs, fmt.Errorf("module.rules[%d].test: %w", i, err))
		}
		if len(rule.Use) == 0 {
			errs = append(errs, fmt.Errorf("module.rules[%d].use: must not be empty", i))
		}
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce: %s must not be negative", c.Watch.Debounce))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Entries returns the entries in sorted name order with absolute paths.
func (c *Config) Entries() []EntryPoint {
	names := make([]string, 0, len(c.Entry))
	for name := range c.Entry {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]EntryPoint, 0, len(names))
	for _, name := range names {
		out = append(out, EntryPoint{Name: name, Path: c.abs(c.Entry[name])})
	}
	return out
}

// OutputDir returns the absolute output directory.
func (c *Config) OutputDir() string {
	return c.abs(c.Output.Path)
}

// AssetName returns the output filename for entry.
func (c *Config) AssetName(entry string) string {
	return strings.ReplaceAll(c.Output.Filename, NamePlaceholder, entry)
}

func (c *Config) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(c.Context, filepath.FromSlash(path))
}
