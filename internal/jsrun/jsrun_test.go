// SPDX-License-Identifier: MPL-2.0

package jsrun

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/minipack/minipack/internal/testutil"
)

func TestRunConsole(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	s := New(&out)
	if err := s.Run(t.Context(), "log.js", `console.log("a", 1, true); console.error("b");`); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got, want := out.String(), "a 1 true\nb\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestGlobalSharedAcrossRuns(t *testing.T) {
	t.Parallel()

	s := New(&bytes.Buffer{})
	if err := s.Run(t.Context(), "one.js", "var answer = 41;"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := s.Run(t.Context(), "two.js", "answer++;"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	v, ok := s.Global("answer")
	if !ok || v != int64(42) {
		t.Errorf("Global(answer) = %v, %v; want 42, true", v, ok)
	}
	if _, ok := s.Global("missing"); ok {
		t.Error("Global(missing) reported ok")
	}
}

func TestRunException(t *testing.T) {
	t.Parallel()

	s := New(&bytes.Buffer{})
	err := s.Run(t.Context(), "throw.js", `throw new Error("nope")`)
	var scriptErr *ScriptError
	if !errors.As(err, &scriptErr) {
		t.Fatalf("Run() error = %T %v, want *ScriptError", err, err)
	}
	if scriptErr.Name != "throw.js" || !strings.Contains(scriptErr.Message, "nope") {
		t.Errorf("ScriptError = %+v", scriptErr)
	}
}

func TestRunInterrupted(t *testing.T) {
	t.Parallel()

	s := New(&bytes.Buffer{})
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	err := s.Run(ctx, "loop.js", "for (;;) {}")
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Run() error = %v, want ErrInterrupted", err)
	}

	// The session stays usable after an interrupt.
	if err := s.Run(t.Context(), "after.js", "var ok = true;"); err != nil {
		t.Fatalf("Run() after interrupt error = %v", err)
	}
}

func TestRunFile(t *testing.T) {
	t.Parallel()

	fs := testutil.MemProject(t, "/dist", testutil.Files{"main.js": `console.log("hi")`})
	var out bytes.Buffer
	if err := New(&out).RunFile(t.Context(), fs, "/dist/main.js"); err != nil {
		t.Fatalf("RunFile() error = %v", err)
	}
	if out.String() != "hi\n" {
		t.Errorf("output = %q", out.String())
	}
	if err := New(&out).RunFile(t.Context(), fs, "/dist/nope.js"); err == nil {
		t.Error("RunFile() on missing file succeeded")
	}
}
