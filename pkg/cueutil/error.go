// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
)

type (
	// Violation is one schema violation at a field path.
	Violation struct {
		// Path is the field in JSON-path notation, e.g. "module.rules[0].use".
		// It is empty for errors that are not tied to a field.
		Path    string
		Message string
	}

	// ValidationError lists the schema violations found in one config file.
	ValidationError struct {
		FilePath   string
		Violations []Violation
	}
)

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// Error renders a single violation inline and several as an indented list.
func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return e.FilePath + ": " + e.Violations[0].String()
	}
	lines := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		lines[i] = v.String()
	}
	return fmt.Sprintf("%s: %d schema violations:\n  %s", e.FilePath, len(e.Violations), strings.Join(lines, "\n  "))
}

// FormatError converts a CUE error into a *ValidationError for filePath,
// for example:
//
//	minipack.cue: output.filename: invalid value "bundle" (out of bound =~"\\.[A-Za-z0-9]+$")
//
// Errors that carry no CUE details are wrapped with the file path.
func FormatError(err error, filePath string) error {
	if err == nil {
		return nil
	}
	cueErrors := errors.Errors(err)
	if len(cueErrors) == 0 {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	verr := &ValidationError{FilePath: filePath}
	for _, e := range cueErrors {
		path := formatPath(errors.Path(e))
		msg := e.Error()
		// CUE repeats the path in some messages.
		if path != "" {
			if rest, ok := strings.CutPrefix(msg, path); ok {
				msg = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
			}
		}
		verr.Violations = append(verr.Violations, Violation{Path: path, Message: msg})
	}
	return verr
}

// formatPath joins CUE path selectors, writing numeric ones as indexes:
// ["module", "rules", "0", "use"] becomes "module.rules[0].use".
func formatPath(path []string) string {
	var b strings.Builder
	for i, part := range path {
		switch {
		case i > 0 && isIndex(part):
			b.WriteString("[" + part + "]")
		case i > 0:
			b.WriteString("." + part)
		default:
			b.WriteString(part)
		}
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// CheckFileSize verifies that data does not exceed maxSize bytes.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", filename, len(data), maxSize)
	}
	return nil
}
