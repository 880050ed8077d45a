// SPDX-License-Identifier: MPL-2.0

// Package codegen turns a chunk into a self-contained script.
//
// The generated asset is a single function expression that runs
// immediately. It holds a factory per non-entry module keyed by module id,
// a require function that caches each module's record before running its
// factory, and the entry module's body. The entry's own record is cached
// under its id first, so a module that requires the entry back sees its
// partial exports.
package codegen

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/minipack/minipack/internal/chunk"
)

//go:embed runtime.js
var runtime string

// Generate returns the asset text for c.
func Generate(c chunk.Chunk) (string, error) {
	if c.Entry == nil {
		return "", fmt.Errorf("chunk %q has no entry module", c.Name)
	}
	entryID, err := quote(c.Entry.ID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("(function () {\n")
	sb.WriteString("  var __minipack_modules__ = {\n")
	for _, m := range c.Modules {
		id, err := quote(m.ID)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "    %s: function (module, exports, require) {\n", id)
		writeBody(&sb, m.Source)
		sb.WriteString("    },\n")
	}
	sb.WriteString("  };\n")
	sb.WriteString(runtime)
	fmt.Fprintf(&sb, "  var module = __minipack_cache__[%s] = { exports: {} };\n", entryID)
	sb.WriteString("  var exports = module.exports;\n")
	sb.WriteString("  (function () {\n")
	writeBody(&sb, c.Entry.Source)
	sb.WriteString("  }).call(exports);\n")
	sb.WriteString("})();\n")
	return sb.String(), nil
}

// writeBody copies source verbatim on its own lines. Indenting it would
// change the contents of multi-line template literals.
func writeBody(sb *strings.Builder, source string) {
	sb.WriteString(source)
	if !strings.HasSuffix(source, "\n") {
		sb.WriteByte('\n')
	}
}

// quote renders id as a JavaScript string literal.
func quote(id string) (string, error) {
	b, err := json.Marshal(id)
	if err != nil {
		return "", fmt.Errorf("quote module id %q: %w", id, err)
	}
	return string(b), nil
}
