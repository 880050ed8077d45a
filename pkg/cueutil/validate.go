// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
)

// DefaultMaxFileSize bounds config files read into memory.
const DefaultMaxFileSize int64 = 5 << 20

// ValidateMap unifies value with the schema definition at schemaPath,
// validates the result and decodes it into a map. Fields may be left
// non-concrete by the schema; only the data the user wrote is returned.
func ValidateMap(ctx *cue.Context, schema, schemaPath string, value cue.Value, filename string) (map[string]any, error) {
	schemaValue := ctx.CompileString(schema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}
	root := schemaValue.LookupPath(cue.ParsePath(schemaPath))
	if root.Err() != nil {
		return nil, fmt.Errorf("internal error: schema definition %s not found: %w", schemaPath, root.Err())
	}

	unified := root.Unify(value)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return nil, FormatError(err, filename)
	}

	var out map[string]any
	if err := unified.Decode(&out); err != nil {
		return nil, FormatError(err, filename)
	}
	return out, nil
}
