// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/minipack/minipack/internal/config"
	"github.com/minipack/minipack/internal/testutil"
)

type passResult struct {
	stats *Stats
	err   error
}

func waitPass(t *testing.T, passes <-chan passResult) passResult {
	t.Helper()
	select {
	case p := <-passes:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a pass")
		return passResult{}
	}
}

func TestWatchRecompilesOnChange(t *testing.T) {
	t.Parallel()

	dir := testutil.DiskProject(t, testutil.Files{
		"index.js": "globalThis.v = require('./v');",
		"v.js":     "module.exports = 1;",
	})
	cfg := config.DefaultConfig()
	cfg.Context = dir
	cfg.Entry = map[string]string{"main": "./index.js"}
	cfg.Watch.Debounce = 50 * time.Millisecond
	fs := afero.NewOsFs()
	c := mustNew(t, cfg, WithFs(fs))

	passes := make(chan passResult, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, func(s *Stats, err error) { passes <- passResult{s, err} })
	}()

	if p := waitPass(t, passes); p.err != nil {
		t.Fatalf("initial pass error = %v", p.err)
	}
	asset := filepath.Join(dir, "dist", "main.js")
	s, _ := runAsset(t, fs, asset)
	if got, _ := s.Global("v"); got != int64(1) {
		t.Fatalf("v = %v, want 1", got)
	}

	// A broken edit fails the pass without stopping the watch.
	time.Sleep(50 * time.Millisecond)
	write(t, filepath.Join(dir, "v.js"), "require('./gone');")
	if p := waitPass(t, passes); p.err == nil {
		t.Fatal("broken pass succeeded")
	}

	write(t, filepath.Join(dir, "v.js"), "module.exports = 2;")
	if p := waitPass(t, passes); p.err != nil {
		t.Fatalf("recovery pass error = %v", p.err)
	}
	s, _ = runAsset(t, fs, asset)
	if got, _ := s.Global("v"); got != int64(2) {
		t.Errorf("v = %v, want 2", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchEntryAppears(t *testing.T) {
	t.Parallel()

	dir := testutil.DiskProject(t, testutil.Files{"src/.keep": ""})
	cfg := config.DefaultConfig()
	cfg.Context = dir
	cfg.Entry = map[string]string{"main": "./src/index.js"}
	cfg.Watch.Debounce = 50 * time.Millisecond
	c := mustNew(t, cfg)

	passes := make(chan passResult, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = c.Watch(ctx, func(s *Stats, err error) { passes <- passResult{s, err} })
	}()

	if p := waitPass(t, passes); p.err == nil {
		t.Fatal("pass without entry file succeeded")
	}
	time.Sleep(50 * time.Millisecond)
	write(t, filepath.Join(dir, "src", "index.js"), "module.exports = 1;")
	if p := waitPass(t, passes); p.err != nil {
		t.Fatalf("pass after entry created error = %v", p.err)
	}
	if _, err := os.Stat(filepath.Join(dir, "dist", "main.js")); errors.Is(err, os.ErrNotExist) {
		t.Error("asset not written after entry appeared")
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
