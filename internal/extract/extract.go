// SPDX-License-Identifier: MPL-2.0

// Package extract finds and rewrites the dependencies of a JavaScript module.
//
// The source is parsed into a syntax tree, every call to an identifier named
// require gets its specifier resolved and replaced by the canonical module
// id, and the module text is regenerated from the rewritten tree. Matching is
// by name only: a local binding that shadows require is still treated as the
// module loader.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/minipack/minipack/internal/resolve"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

// requireName is the identifier whose calls introduce dependencies.
const requireName = "require"

var (
	// ErrSyntax is wrapped by ParseError when the source does not parse.
	ErrSyntax = errors.New("syntax error")
	// ErrDynamicRequire is wrapped by ParseError when a require call has no
	// string literal as its first argument.
	ErrDynamicRequire = errors.New("require argument must be a string literal")
)

type (
	// Edge is a resolved dependency: the canonical id written into the
	// rewritten source, and the absolute path it was resolved to.
	Edge struct {
		ID   string
		Path string
	}

	// Result is the outcome of extracting one module.
	Result struct {
		// Source is the regenerated module text with rewritten specifiers.
		Source string
		// Edges lists distinct dependencies in first-occurrence order.
		Edges []Edge
	}

	// ParseError reports source that could not be analyzed. It wraps
	// ErrSyntax or ErrDynamicRequire, and the parser's error when present.
	ParseError struct {
		Path string
		Kind error
		Err  error
	}

	// Extractor rewrites modules belonging to one build context.
	Extractor struct {
		resolver *resolve.Resolver
		context  string
	}

	// visitor walks one syntax tree, rewriting require calls in place.
	visitor struct {
		x     *Extractor
		path  string
		dir   string
		seen  map[string]bool
		edges []Edge
		err   error
	}
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Kind)
}

// Unwrap exposes the error kind and, when present, the underlying cause.
func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// New returns an Extractor computing module ids relative to context.
func New(resolver *resolve.Resolver, context string) *Extractor {
	return &Extractor{resolver: resolver, context: context}
}

// Extract parses source, the transformed text of the module at path, and
// returns the regenerated text together with its dependency edges. The
// syntax tree is private to the call.
func (x *Extractor) Extract(path, source string) (Result, error) {
	tree, err := js.Parse(parse.NewInputString(source), js.Options{})
	if err != nil {
		return Result{}, &ParseError{Path: path, Kind: ErrSyntax, Err: err}
	}

	v := &visitor{
		x:    x,
		path: path,
		dir:  filepath.Dir(path),
		seen: make(map[string]bool),
	}
	js.Walk(v, &tree.BlockStmt)
	if v.err != nil {
		return Result{}, v.err
	}

	return Result{Source: tree.JSString(), Edges: v.edges}, nil
}

// Enter implements js.IVisitor.
func (v *visitor) Enter(n js.INode) js.IVisitor {
	if v.err != nil {
		return nil
	}
	call, ok := n.(*js.CallExpr)
	if !ok || !isRequire(call.X) {
		return v
	}
	if err := v.rewrite(call); err != nil {
		v.err = err
		return nil
	}
	return v
}

// Exit implements js.IVisitor.
func (v *visitor) Exit(js.INode) {}

func (v *visitor) rewrite(call *js.CallExpr) error {
	if len(call.Args.List) == 0 {
		return &ParseError{Path: v.path, Kind: ErrDynamicRequire, Err: errors.New("require() called without arguments")}
	}
	arg := &call.Args.List[0]
	lit, ok := arg.Value.(*js.LiteralExpr)
	if !ok || lit.TokenType != js.StringToken || arg.Rest {
		return &ParseError{Path: v.path, Kind: ErrDynamicRequire, Err: fmt.Errorf("got %s", arg.Value.String())}
	}
	request, err := unquote(lit.Data)
	if err != nil {
		return &ParseError{Path: v.path, Kind: ErrSyntax, Err: err}
	}

	resolved, err := v.x.resolver.Resolve(v.dir, request)
	if err != nil {
		return err
	}
	id, err := resolve.ModuleID(v.x.context, resolved)
	if err != nil {
		return err
	}

	quoted, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("quote module id %q: %w", id, err)
	}
	arg.Value = &js.LiteralExpr{TokenType: js.StringToken, Data: quoted}

	if !v.seen[id] {
		v.seen[id] = true
		v.edges = append(v.edges, Edge{ID: id, Path: resolved})
	}
	return nil
}

func isRequire(callee js.IExpr) bool {
	ident, ok := callee.(*js.Var)
	return ok && string(ident.Data) == requireName
}
