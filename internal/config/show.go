// SPDX-License-Identifier: MPL-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"
	"github.com/pelletier/go-toml/v2"
)

const (
	// FormatCUE renders configuration as CUE.
	FormatCUE Format = "cue"
	// FormatJSON renders configuration as indented JSON.
	FormatJSON Format = "json"
	// FormatTOML renders configuration as TOML.
	FormatTOML Format = "toml"
)

// ErrUnknownFormat is returned by Write for an unsupported Format.
var ErrUnknownFormat = errors.New("unknown format")

type (
	// Format selects the encoding used by Write.
	Format string

	// document mirrors the file layout of Config, with durations as text.
	document struct {
		Context string            `json:"context" toml:"context"`
		Mode    string            `json:"mode" toml:"mode"`
		Entry   map[string]string `json:"entry" toml:"entry"`
		Output  OutputConfig      `json:"output" toml:"output"`
		Resolve ResolveConfig     `json:"resolve" toml:"resolve"`
		Module  ModuleConfig      `json:"module" toml:"module"`
		Plugins []string          `json:"plugins" toml:"plugins"`
		Watch   watchDocument     `json:"watch" toml:"watch"`
	}

	watchDocument struct {
		Debounce string   `json:"debounce" toml:"debounce"`
		Ignore   []string `json:"ignore" toml:"ignore"`
	}
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatCUE, FormatJSON, FormatTOML}
}

// Write encodes cfg to w in the requested format. The output is accepted
// back as a config file.
func Write(w io.Writer, cfg *Config, f Format) error {
	doc := toDocument(cfg)

	var (
		out []byte
		err error
	)
	switch f {
	case FormatCUE:
		v := cuecontext.New().Encode(doc)
		if v.Err() != nil {
			return fmt.Errorf("encode cue: %w", v.Err())
		}
		out, err = format.Node(v.Syntax())
		if err == nil {
			out = append([]byte("// minipack configuration\n"), out...)
		}
	case FormatJSON:
		out, err = json.MarshalIndent(doc, "", "  ")
	case FormatTOML:
		out, err = toml.Marshal(doc)
	default:
		return fmt.Errorf("%w %q (valid: cue, json, toml)", ErrUnknownFormat, f)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", f, err)
	}
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	_, err = w.Write(out)
	return err
}

func toDocument(cfg *Config) document {
	rules := cfg.Module.Rules
	if rules == nil {
		rules = []RuleConfig{}
	}
	return document{
		Context: cfg.Context,
		Mode:    cfg.Mode.String(),
		Entry:   cfg.Entry,
		Output:  cfg.Output,
		Resolve: cfg.Resolve,
		Module:  ModuleConfig{Rules: rules},
		Plugins: cfg.Plugins,
		Watch: watchDocument{
			Debounce: cfg.Watch.Debounce.String(),
			Ignore:   cfg.Watch.Ignore,
		},
	}
}
