// SPDX-License-Identifier: MPL-2.0

// Package jsrun executes generated assets in an embedded JavaScript engine.
package jsrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dop251/goja"
	"github.com/spf13/afero"
)

// ErrInterrupted is returned when a script is stopped by its context.
var ErrInterrupted = errors.New("script interrupted")

type (
	// ScriptError reports an uncaught exception thrown by a script.
	ScriptError struct {
		Name string
		// Message is the string form of the thrown value.
		Message string
		Err     error
	}

	// Session is one JavaScript realm. Scripts run in the same session share
	// globals. A Session is not safe for concurrent use.
	Session struct {
		vm  *goja.Runtime
		out io.Writer
	}
)

// Error implements the error interface.
func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s: uncaught %s", e.Name, e.Message)
}

// Unwrap returns the engine error.
func (e *ScriptError) Unwrap() error {
	return e.Err
}

// New returns a session whose console writes to out.
func New(out io.Writer) *Session {
	s := &Session{vm: goja.New(), out: out}
	s.installConsole()
	return s
}

func (s *Session) installConsole() {
	console := s.vm.NewObject()
	write := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		fmt.Fprintln(s.out, strings.Join(parts, " "))
		return goja.Undefined()
	}
	for _, name := range []string{"log", "info", "warn", "error", "debug"} {
		_ = console.Set(name, write)
	}
	_ = s.vm.Set("console", console)
}

// Run executes src as a classic script named name. Cancelling ctx
// interrupts the script.
func (s *Session) Run(ctx context.Context, name, src string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		s.vm.Interrupt(ctx.Err())
	})
	defer func() {
		// A late interrupt must not leak into the next script.
		if !stop() {
			s.vm.ClearInterrupt()
		}
	}()

	_, err := s.vm.RunScript(name, src)
	if err == nil {
		return nil
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		s.vm.ClearInterrupt()
		return fmt.Errorf("%w: %s: %v", ErrInterrupted, name, interrupted.Value())
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		return &ScriptError{Name: name, Message: exc.Value().String(), Err: err}
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunFile reads path from fs and runs it.
func (s *Session) RunFile(ctx context.Context, fs afero.Fs, path string) error {
	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("read asset: %w", err)
	}
	return s.Run(ctx, path, string(src))
}

// Global returns the exported value of a global variable.
func (s *Session) Global(name string) (any, bool) {
	v := s.vm.GlobalObject().Get(name)
	if v == nil || goja.IsUndefined(v) {
		return nil, false
	}
	return v.Export(), true
}
