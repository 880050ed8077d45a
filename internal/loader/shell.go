// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Shell returns a transform that runs script in the embedded POSIX shell.
// The module source is the script's stdin and its stdout becomes the new
// source. MINIPACK_FILE holds the module path, and the script runs in the
// module's directory when that directory exists on disk. The script is
// parsed once, up front.
func Shell(script string) (Transform, error) {
	if strings.TrimSpace(script) == "" {
		return nil, fmt.Errorf("%w: empty shell script", ErrUnknownTransform)
	}
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), "transform")
	if err != nil {
		return nil, fmt.Errorf("failed to parse shell transform %q: %w", script, err)
	}

	return func(ctx context.Context, path, source string) (string, error) {
		var stdout, stderr bytes.Buffer
		env := append(os.Environ(), "MINIPACK_FILE="+path)
		opts := []interp.RunnerOption{
			interp.Env(expand.ListEnviron(env...)),
			interp.StdIO(strings.NewReader(source), &stdout, &stderr),
		}
		if dir := filepath.Dir(path); isDir(dir) {
			opts = append(opts, interp.Dir(dir))
		}
		runner, err := interp.New(opts...)
		if err != nil {
			return "", fmt.Errorf("failed to create interpreter: %w", err)
		}

		if err := runner.Run(ctx, prog); err != nil {
			var exitStatus interp.ExitStatus
			if errors.As(err, &exitStatus) {
				return "", fmt.Errorf("script exited with status %d: %s", uint8(exitStatus), strings.TrimSpace(stderr.String()))
			}
			return "", fmt.Errorf("script execution failed: %w", err)
		}
		return stdout.String(), nil
	}, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
