// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/minipack/minipack/internal/config"
	"github.com/minipack/minipack/internal/jsrun"
	"github.com/minipack/minipack/internal/loader"
	"github.com/minipack/minipack/internal/resolve"
	"github.com/minipack/minipack/internal/testutil"
)

const root = "/proj"

func testConfig(entries map[string]string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Context = root
	cfg.Entry = entries
	return cfg
}

func mustNew(t *testing.T, cfg *config.Config, opts ...Option) *Compiler {
	t.Helper()
	c, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

// runAsset executes the asset at path and returns the session for
// inspecting globals.
func runAsset(t *testing.T, fs afero.Fs, path string) (*jsrun.Session, string) {
	t.Helper()
	var out bytes.Buffer
	s := jsrun.New(&out)
	if err := s.RunFile(t.Context(), fs, path); err != nil {
		t.Fatalf("RunFile(%s) error = %v\noutput: %s", path, err, out.String())
	}
	return s, out.String()
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	fs := testutil.MemProject(t, root, testutil.Files{
		"src/index.js": "globalThis.ok = require('./a') === 42;",
		"src/a.js":     "module.exports = 42;",
	})
	c := mustNew(t, testConfig(map[string]string{"main": "./src/index.js"}), WithFs(fs))

	stats, err := c.Run(t.Context())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	s, _ := runAsset(t, fs, "/proj/dist/main.js")
	if got, _ := s.Global("ok"); got != true {
		t.Errorf("ok = %v, want true", got)
	}

	if diff := cmp.Diff([]string{"/proj/src/index.js", "/proj/src/a.js"}, stats.FileDependencies); diff != "" {
		t.Errorf("FileDependencies mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"./src/a.js", "./src/index.js"}, stats.Order); diff != "" {
		t.Errorf("Order mismatch (-want +got):\n%s", diff)
	}
	want := []AssetStats{{
		Name:     "main",
		Filename: "main.js",
		Path:     "/proj/dist/main.js",
		Size:     len(testutil.MustReadFile(t, fs, "/proj/dist/main.js")),
	}}
	if diff := cmp.Diff(want, stats.Assets); diff != "" {
		t.Errorf("Assets mismatch (-want +got):\n%s", diff)
	}
}

func TestRunRequiresJSONWithDefaults(t *testing.T) {
	t.Parallel()

	fs := testutil.MemProject(t, root, testutil.Files{
		"src/index.js":  "globalThis.answer = require('./data').answer;",
		"src/data.json": `{"answer": 42}`,
	})
	c := mustNew(t, testConfig(map[string]string{"main": "./src/index.js"}), WithFs(fs))

	if _, err := c.Run(t.Context()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	s, _ := runAsset(t, fs, "/proj/dist/main.js")
	if got, _ := s.Global("answer"); got != int64(42) {
		t.Errorf("answer = %v (%T), want 42", got, got)
	}
}

func TestRunSharedModuleAcrossEntries(t *testing.T) {
	t.Parallel()

	fs := testutil.MemProject(t, root, testutil.Files{
		"main.js":   "globalThis.main = require('./shared').n;",
		"admin.js":  "globalThis.admin = require('./shared').n + require('./extra');",
		"shared.js": "exports.n = 1;",
		"extra.js":  "module.exports = 10;",
	})
	cfg := testConfig(map[string]string{"main": "./main.js", "admin": "./admin.js"})
	c := mustNew(t, cfg, WithFs(fs))

	stats, err := c.Run(t.Context())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	names := map[string][]string{}
	for _, m := range stats.Modules {
		if _, dup := names[m.ID]; dup {
			t.Errorf("module %s recorded twice", m.ID)
		}
		names[m.ID] = m.Names
	}
	wantNames := map[string][]string{
		"./admin.js":  {"admin"},
		"./shared.js": {"admin", "main"},
		"./extra.js":  {"admin"},
		"./main.js":   {"main"},
	}
	if diff := cmp.Diff(wantNames, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	wantChunks := []ChunkStats{
		{Name: "admin", Entry: "./admin.js", Modules: []string{"./shared.js", "./extra.js"}},
		{Name: "main", Entry: "./main.js", Modules: []string{"./shared.js"}},
	}
	if diff := cmp.Diff(wantChunks, stats.Chunks); diff != "" {
		t.Errorf("chunks mismatch (-want +got):\n%s", diff)
	}

	s, _ := runAsset(t, fs, "/proj/dist/admin.js")
	if got, _ := s.Global("admin"); got != int64(11) {
		t.Errorf("admin = %v, want 11", got)
	}
	s, _ = runAsset(t, fs, "/proj/dist/main.js")
	if got, _ := s.Global("main"); got != int64(1) {
		t.Errorf("main = %v, want 1", got)
	}
}

func TestRunFailureWritesNothing(t *testing.T) {
	t.Parallel()

	fs := testutil.MemProject(t, root, testutil.Files{
		"ok.js":     "module.exports = 1;",
		"broken.js": "require('./missing');",
	})
	cfg := testConfig(map[string]string{"a": "./ok.js", "b": "./broken.js"})
	c := mustNew(t, cfg, WithFs(fs))

	stats, err := c.Run(t.Context())
	if !errors.Is(err, resolve.ErrNotFound) {
		t.Fatalf("Run() error = %v, want ErrNotFound", err)
	}
	var resErr *resolve.ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("error %T is not a *resolve.ResolutionError", err)
	}

	testutil.MustNotExist(t, fs, "/proj/dist/a.js")
	testutil.MustNotExist(t, fs, "/proj/dist/b.js")
	if stats == nil || !slices.Contains(stats.FileDependencies, "/proj/broken.js") {
		t.Errorf("failed pass stats = %+v, want broken.js among file dependencies", stats)
	}
}

func TestRunFailureKeepsPreviousAssets(t *testing.T) {
	t.Parallel()

	fs := testutil.MemProject(t, root, testutil.Files{
		"index.js":     "module.exports = 1;",
		"dist/main.js": "previous",
	})
	c := mustNew(t, testConfig(map[string]string{"main": "./index.js"}), WithFs(fs))
	testutil.WriteFiles(t, fs, root, testutil.Files{"index.js": "require(name);"})

	if _, err := c.Run(t.Context()); err == nil {
		t.Fatal("Run() succeeded on a dynamic require")
	}
	if got := testutil.MustReadFile(t, fs, "/proj/dist/main.js"); got != "previous" {
		t.Errorf("asset overwritten by failed pass: %q", got)
	}
	entries, err := afero.ReadDir(fs, "/proj/dist")
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("dist holds %d files, want only main.js", len(entries))
	}
}

func TestRunIsFreshEveryPass(t *testing.T) {
	t.Parallel()

	fs := testutil.MemProject(t, root, testutil.Files{
		"index.js": "globalThis.v = require('./v');",
		"v.js":     "module.exports = 'one';",
	})
	c := mustNew(t, testConfig(map[string]string{"main": "./index.js"}), WithFs(fs))

	for _, want := range []string{"one", "two"} {
		testutil.WriteFiles(t, fs, root, testutil.Files{"v.js": "module.exports = '" + want + "';"})
		if _, err := c.Run(t.Context()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		s, _ := runAsset(t, fs, "/proj/dist/main.js")
		if got, _ := s.Global("v"); got != want {
			t.Errorf("v = %v, want %q", got, want)
		}
	}
}

func TestRunAppliesRules(t *testing.T) {
	t.Parallel()

	fs := testutil.MemProject(t, root, testutil.Files{
		"index.js": "globalThis.answer = ANSWER;",
	})
	reg := loader.NewRegistry()
	reg.Register("answer", func(_ context.Context, _, source string) (string, error) {
		return strings.ReplaceAll(source, "ANSWER", "42"), nil
	})
	cfg := testConfig(map[string]string{"main": "./index.js"})
	cfg.Module.Rules = []config.RuleConfig{{Test: `\.js$`, Use: []string{"answer"}}}
	c := mustNew(t, cfg, WithFs(fs), WithRegistry(reg))

	if _, err := c.Run(t.Context()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	s, _ := runAsset(t, fs, "/proj/dist/main.js")
	if got, _ := s.Global("answer"); got != int64(42) {
		t.Errorf("answer = %v, want 42", got)
	}
}

func TestRunCycleStillEmits(t *testing.T) {
	t.Parallel()

	fs := testutil.MemProject(t, root, testutil.Files{
		"index.js": "globalThis.ok = require('./a').done;",
		"a.js":     "require('./b'); exports.done = true;",
		"b.js":     "require('./a');",
	})
	c := mustNew(t, testConfig(map[string]string{"main": "./index.js"}), WithFs(fs))

	stats, err := c.Run(t.Context())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if diff := cmp.Diff([]string{"./a.js", "./b.js", "./a.js"}, stats.Cycle); diff != "" {
		t.Errorf("Cycle mismatch (-want +got):\n%s", diff)
	}
	s, _ := runAsset(t, fs, "/proj/dist/main.js")
	if got, _ := s.Global("ok"); got != true {
		t.Errorf("ok = %v, want true", got)
	}
}

func TestHooks(t *testing.T) {
	t.Parallel()

	fs := testutil.MemProject(t, root, testutil.Files{"index.js": ""})
	var events []string
	record := PluginFunc(func(c *Compiler) {
		c.Hooks.BeforeRun.Tap(func() { events = append(events, "run") })
		c.Hooks.AfterDone.Tap(func() {
			_, err := c.Last()
			events = append(events, "done:"+boolString(err == nil))
		})
	})
	c := mustNew(t, testConfig(map[string]string{"main": "./index.js"}), WithFs(fs), WithPlugins(record))

	if _, err := c.Run(t.Context()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	testutil.WriteFiles(t, fs, root, testutil.Files{"index.js": "require('./nope');"})
	if _, err := c.Run(t.Context()); err == nil {
		t.Fatal("second Run() succeeded")
	}

	want := []string{"run", "done:true", "run", "done:false"}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("hook events mismatch (-want +got):\n%s", diff)
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func TestBuiltinPlugins(t *testing.T) {
	t.Parallel()

	fs := testutil.MemProject(t, root, testutil.Files{"index.js": ""})
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.InfoLevel})
	cfg := testConfig(map[string]string{"main": "./index.js"})
	cfg.Plugins = []string{"run-logger", "done-logger", "timer"}
	c := mustNew(t, cfg, WithFs(fs), WithLogger(logger))

	if c.Hooks.BeforeRun.Len() != 2 || c.Hooks.AfterDone.Len() != 2 {
		t.Fatalf("hooks = %d/%d, want 2/2", c.Hooks.BeforeRun.Len(), c.Hooks.AfterDone.Len())
	}
	if _, err := c.Run(t.Context()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"compiling", "compiled", "pass finished"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestNewErrors(t *testing.T) {
	t.Parallel()

	unknownPlugin := testConfig(map[string]string{"main": "./index.js"})
	unknownPlugin.Plugins = []string{"nope"}

	unknownTransform := testConfig(map[string]string{"main": "./index.js"})
	unknownTransform.Module.Rules = []config.RuleConfig{{Test: `\.js$`, Use: []string{"missing"}}}

	invalid := testConfig(map[string]string{"main": "./index.js"})
	invalid.Context = "relative"

	tests := []struct {
		name string
		cfg  *config.Config
		want error
	}{
		{name: "unknown plugin", cfg: unknownPlugin, want: ErrUnknownPlugin},
		{name: "unknown transform", cfg: unknownTransform, want: loader.ErrUnknownTransform},
		{name: "invalid config", cfg: invalid, want: config.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStatsJSON(t *testing.T) {
	t.Parallel()

	fs := testutil.MemProject(t, root, testutil.Files{
		"index.js": "require('./a');",
		"a.js":     "",
	})
	c := mustNew(t, testConfig(map[string]string{"main": "./index.js"}), WithFs(fs))
	stats, err := c.Run(t.Context())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	tests := []struct {
		name string
		opts StatsOptions
		keys []string
	}{
		{name: "all", opts: AllStats, keys: []string{"assets", "chunks", "modules", "time"}},
		{name: "modules only", opts: StatsOptions{Modules: true}, keys: []string{"modules", "time"}},
		{name: "none", opts: StatsOptions{}, keys: []string{"time"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data, err := stats.JSON(tt.opts)
			if err != nil {
				t.Fatalf("JSON() error = %v", err)
			}
			var doc map[string]json.RawMessage
			if err := json.Unmarshal(data, &doc); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			var keys []string
			for k := range doc {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			if diff := cmp.Diff(tt.keys, keys); diff != "" {
				t.Errorf("keys mismatch (-want +got):\n%s", diff)
			}
		})
	}

	data, err := stats.JSON(StatsOptions{Modules: true})
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	var doc struct {
		Modules []ModuleStats `json:"modules"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if diff := cmp.Diff(stats.Modules, doc.Modules); diff != "" {
		t.Errorf("modules mismatch (-want +got):\n%s", diff)
	}
}

func TestLookupPlugin(t *testing.T) {
	t.Parallel()

	if diff := cmp.Diff([]string{"done-logger", "run-logger", "timer"}, PluginNames()); diff != "" {
		t.Errorf("PluginNames() mismatch (-want +got):\n%s", diff)
	}
	a, err := LookupPlugin("timer")
	if err != nil {
		t.Fatalf("LookupPlugin() error = %v", err)
	}
	b, _ := LookupPlugin("timer")
	if a == b {
		t.Error("LookupPlugin returned a shared instance")
	}
}
