// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates configuration data against embedded CUE schemas.
//
// Data from any source (a CUE file, or JSON, YAML and TOML decoded by
// viper) is unified with a schema definition, validated, and decoded into a
// plain map ready to merge into viper:
//
//	//go:embed config_schema.cue
//	var schema string
//
//	ctx := cuecontext.New()
//	m, err := cueutil.ValidateMap(ctx, schema, "#Config", ctx.CompileBytes(data), "minipack.cue")
//	if err != nil {
//	    return err // includes the CUE path of the offending field
//	}
//
// Errors are reported as <file>: <json-path>: <message>.
package cueutil
