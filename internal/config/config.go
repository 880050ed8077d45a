// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/minipack/minipack/internal/issue"
	"github.com/minipack/minipack/pkg/cueutil"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "minipack"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "minipack"
	// ConfigFileExt is the preferred config file extension.
	ConfigFileExt = "cue"
)

//go:embed config_schema.cue
var configSchema string

// discoveryExts lists config file extensions in lookup order.
var discoveryExts = []string{ConfigFileExt, "json", "yaml", "yml", "toml"}

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// ConfigFilePath forces loading from a specific config file when set.
	ConfigFilePath string
	// Dir is searched for a minipack config file and is the default
	// context. The working directory is used when empty.
	Dir string
	// Overrides are key=value arguments applied on top of the file.
	Overrides []string
}

// Provider loads configuration from explicit options.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Config, error)
}

type fileProvider struct {
	fs afero.Fs
}

// NewProvider creates a configuration provider reading from fs.
func NewProvider(fs afero.Fs) Provider {
	return &fileProvider{fs: fs}
}

// Load reads configuration from the requested source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, _, err := Load(ctx, p.fs, opts)
	return cfg, err
}

// Load resolves, validates and returns the configuration together with the
// path of the config file it came from ("" when only defaults were used).
func Load(ctx context.Context, fs afero.Fs, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	baseDir := opts.Dir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}

	v := viper.New()
	v.SetFs(fs)

	defaults := DefaultConfig()
	v.SetDefault("mode", string(defaults.Mode))
	v.SetDefault("output.path", defaults.Output.Path)
	v.SetDefault("output.filename", defaults.Output.Filename)
	v.SetDefault("resolve.extensions", defaults.Resolve.Extensions)
	v.SetDefault("module.rules", ruleMaps(defaults.Module.Rules))
	v.SetDefault("plugins", defaults.Plugins)
	v.SetDefault("watch.debounce", defaults.Watch.Debounce)
	v.SetDefault("watch.ignore", defaults.Watch.Ignore)

	resolvedPath := opts.ConfigFilePath
	if resolvedPath != "" {
		if !filepath.IsAbs(resolvedPath) {
			resolvedPath = filepath.Join(baseDir, resolvedPath)
		}
		if !fileExists(fs, resolvedPath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'minipack config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", resolvedPath)).
				WithIssue(issue.ConfigLoadFailedId).
				BuildError()
		}
	} else {
		resolvedPath = discover(fs, baseDir)
	}

	var fileEntry any
	if resolvedPath != "" {
		configMap, err := loadFileIntoViper(v, fs, resolvedPath)
		if err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file syntax is valid").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("See 'minipack config --help' for configuration options").
				Wrap(err).
				WithIssue(issue.ConfigLoadFailedId).
				BuildError()
		}
		fileEntry = configMap["entry"]
		baseDir = filepath.Dir(resolvedPath)
	}

	if err := applyOverrides(v, opts.Overrides); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("apply command-line overrides").
			WithSuggestion("Write overrides as key=value, for example mode=production").
			WithSuggestion("Use dotted keys for nested fields, for example output.path=build").
			Wrap(err).
			WithIssue(issue.ConfigLoadFailedId).
			BuildError()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		entryHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	entry, err := namedEntries(fileEntry, opts.Overrides)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if entry != nil {
		cfg.Entry = entry
	}

	if len(cfg.Entry) == 0 {
		cfg.Entry = defaults.Entry
	}
	switch {
	case cfg.Context == "":
		cfg.Context = baseDir
	case !filepath.IsAbs(cfg.Context):
		cfg.Context = filepath.Join(baseDir, cfg.Context)
	}
	cfg.Context = filepath.Clean(cfg.Context)

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Ensure every module rule test is a valid regular expression").
			WithSuggestion("Use [name] in output.filename when building several entries").
			Wrap(err).
			WithIssue(issue.ConfigLoadFailedId).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// discover returns the first minipack.<ext> file in dir, or "".
func discover(fs afero.Fs, dir string) string {
	for _, ext := range discoveryExts {
		path := filepath.Join(dir, ConfigFileName+"."+ext)
		if fileExists(fs, path) {
			return path
		}
	}
	return ""
}

// loadFileIntoViper validates a config file against the #Config schema and
// merges its contents into v. CUE files are compiled directly; the other
// formats are decoded first and then checked the same way. The returned map
// keeps keys as written, while v folds them to lower case.
func loadFileIntoViper(v *viper.Viper, fs afero.Fs, path string) (map[string]any, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()
	var userValue cue.Value
	if strings.EqualFold(filepath.Ext(path), "."+ConfigFileExt) {
		userValue = ctx.CompileBytes(data, cue.Filename(path))
	} else {
		raw, err := decodeFile(path, data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		userValue = ctx.Encode(raw)
	}
	if userValue.Err() != nil {
		return nil, cueutil.FormatError(userValue.Err(), path)
	}

	configMap, err := cueutil.ValidateMap(ctx, configSchema, "#Config", userValue, path)
	if err != nil {
		return nil, err
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	return configMap, nil
}

// decodeFile decodes a JSON, YAML or TOML config file into a generic map.
func decodeFile(path string, data []byte) (map[string]any, error) {
	raw := map[string]any{}
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", ext)
	}
	if err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// namedEntries rebuilds the entry map with names spelled as configured.
// fileEntry is the entry value from the config file and entry overrides are
// applied on top of it. It returns nil when neither sets an entry.
func namedEntries(fileEntry any, overrides []string) (map[string]string, error) {
	var entry map[string]string
	if fileEntry != nil {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook: entryHook,
			Result:     &entry,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(fileEntry); err != nil {
			return nil, fmt.Errorf("entry: %w", err)
		}
	}
	for _, arg := range overrides {
		key, value, _ := strings.Cut(arg, "=")
		key = strings.TrimSpace(strings.TrimPrefix(key, "--"))
		switch {
		case key == "entry":
			entry = map[string]string{DefaultEntryName: value}
		case strings.HasPrefix(key, "entry."):
			if entry == nil {
				entry = map[string]string{}
			}
			entry[strings.TrimPrefix(key, "entry.")] = value
		}
	}
	return entry, nil
}

func ruleMaps(rules []RuleConfig) []map[string]any {
	out := make([]map[string]any, 0, len(rules))
	for _, r := range rules {
		out = append(out, map[string]any{"test": r.Test, "use": r.Use})
	}
	return out
}

// applyOverrides sets every key=value argument on v. Dotted keys address
// nested fields; list fields accept comma separated values.
func applyOverrides(v *viper.Viper, overrides []string) error {
	for _, arg := range overrides {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(strings.TrimPrefix(key, "--"))
		if !ok || key == "" {
			return fmt.Errorf("%w: %q (want key=value)", ErrInvalidOverride, arg)
		}
		v.Set(key, value)
	}
	return nil
}

// entryHook accepts a single entry path wherever an entry map is expected.
func entryHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(map[string]string{}) {
		return data, nil
	}
	if s, ok := data.(string); ok {
		return map[string]string{DefaultEntryName: s}, nil
	}
	return data, nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	return err == nil && !info.IsDir()
}
