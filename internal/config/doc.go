// SPDX-License-Identifier: MPL-2.0

// Package config loads build configuration using Viper with CUE as the
// preferred file format.
//
// The configuration is read from minipack.cue (or minipack.json, .yaml,
// .toml) in the project directory, or from an explicit --config path. Every
// format is validated against the embedded CUE schema (config_schema.cue)
// before it is merged into Viper. Command-line key=value arguments override
// file values, and defaults fill the rest.
package config
