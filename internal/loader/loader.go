// SPDX-License-Identifier: MPL-2.0

// Package loader applies configured source transforms to modules.
//
// A Pipeline is built from an ordered list of rules. Every rule whose test
// pattern matches a module's absolute path contributes its transforms; the
// combined list runs right to left, so the last listed transform sees the
// raw source and the first listed one produces the final text.
package loader

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrTransform is the sentinel wrapped by TransformError.
	ErrTransform = errors.New("transform failed")
	// ErrUnknownTransform is returned when a rule names a transform that is
	// not registered.
	ErrUnknownTransform = errors.New("unknown transform")
)

type (
	// Transform rewrites the source text of the module at path.
	Transform func(ctx context.Context, path, source string) (string, error)

	// Rule selects modules by path and names the transforms applied to them.
	Rule struct {
		// Test is matched against the module's absolute path.
		Test *regexp.Regexp
		// Use lists transform identifiers, applied right to left.
		Use []string
	}

	// TransformError reports a transform that failed on a module.
	// It wraps both ErrTransform and the transform's own error.
	TransformError struct {
		Path      string
		Transform string
		Err       error
	}

	// Pipeline is an immutable, compiled rule set.
	Pipeline struct {
		rules []compiledRule
	}

	compiledRule struct {
		test *regexp.Regexp
		use  []step
	}

	step struct {
		name string
		fn   Transform
	}
)

// Error implements the error interface.
func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %q on %s: %v", e.Transform, e.Path, e.Err)
}

// Unwrap exposes ErrTransform and the underlying cause.
func (e *TransformError) Unwrap() []error {
	return []error{ErrTransform, e.Err}
}

// NewPipeline looks up every transform named by rules in reg. A rule with a
// nil Test never matches.
func NewPipeline(reg *Registry, rules []Rule) (*Pipeline, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, rule := range rules {
		steps := make([]step, 0, len(rule.Use))
		for _, name := range rule.Use {
			fn, err := reg.Lookup(name)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, err)
			}
			steps = append(steps, step{name: name, fn: fn})
		}
		compiled = append(compiled, compiledRule{test: rule.Test, use: steps})
	}
	return &Pipeline{rules: compiled}, nil
}

// Transforms returns the identifiers of the transforms that apply to path,
// in listed order (the last one runs first).
func (p *Pipeline) Transforms(path string) []string {
	var names []string
	for _, s := range p.match(path) {
		names = append(names, s.name)
	}
	return names
}

func (p *Pipeline) match(path string) []step {
	var steps []step
	for _, rule := range p.rules {
		if rule.test != nil && rule.test.MatchString(path) {
			steps = append(steps, rule.use...)
		}
	}
	return steps
}

// Transform runs the transforms matching path over raw. When no rule
// matches the source is returned unchanged.
func (p *Pipeline) Transform(ctx context.Context, path, raw string) (string, error) {
	steps := p.match(path)
	source := raw
	for i := len(steps) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := steps[i].fn(ctx, path, source)
		if err != nil {
			return "", &TransformError{Path: path, Transform: steps[i].name, Err: err}
		}
		source = out
	}
	return source, nil
}
