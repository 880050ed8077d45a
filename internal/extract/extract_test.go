// SPDX-License-Identifier: MPL-2.0

package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/minipack/minipack/internal/resolve"
	"github.com/minipack/minipack/internal/testutil"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	fs := testutil.MemProject(t, "/proj", testutil.Files{
		"src/index.js":                  "",
		"src/a.js":                      "",
		"src/lib/b.js":                  "",
		"src/data.json":                 "",
		"node_modules/pkg/package.json": `{"main": "main.js"}`,
		"node_modules/pkg/main.js":      "",
	})
	return New(resolve.New(fs, []string{".js", ".json"}), "/proj")
}

func TestExtractRewritesSpecifiers(t *testing.T) {
	t.Parallel()

	x := newTestExtractor(t)
	src := `const a = require('./a');
const b = require("./lib/b.js");
const d = require('./data');
const p = require('pkg');
module.exports = a + b;`

	res, err := x.Extract("/proj/src/index.js", src)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	for _, want := range []string{
		`require("./src/a.js")`,
		`require("./src/lib/b.js")`,
		`require("./src/data.json")`,
		`require("./node_modules/pkg/main.js")`,
	} {
		if !strings.Contains(res.Source, want) {
			t.Errorf("rewritten source missing %s:\n%s", want, res.Source)
		}
	}
	if strings.Contains(res.Source, "'./a'") {
		t.Errorf("original specifier survived:\n%s", res.Source)
	}

	wantEdges := []Edge{
		{ID: "./src/a.js", Path: "/proj/src/a.js"},
		{ID: "./src/lib/b.js", Path: "/proj/src/lib/b.js"},
		{ID: "./src/data.json", Path: "/proj/src/data.json"},
		{ID: "./node_modules/pkg/main.js", Path: "/proj/node_modules/pkg/main.js"},
	}
	if diff := cmp.Diff(wantEdges, res.Edges); diff != "" {
		t.Errorf("Edges mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractDeduplicatesEdges(t *testing.T) {
	t.Parallel()

	x := newTestExtractor(t)
	src := `require('./a'); require('./a.js'); require("./lib/../a");`

	res, err := x.Extract("/proj/src/index.js", src)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(res.Edges) != 1 {
		t.Fatalf("len(Edges) = %d, want 1: %v", len(res.Edges), res.Edges)
	}
	if n := strings.Count(res.Source, `require("./src/a.js")`); n != 3 {
		t.Errorf("rewritten call sites = %d, want 3:\n%s", n, res.Source)
	}
}

func TestExtractNoDependencies(t *testing.T) {
	t.Parallel()

	x := newTestExtractor(t)
	res, err := x.Extract("/proj/src/a.js", "module.exports = 42;")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(res.Edges) != 0 {
		t.Errorf("Edges = %v, want none", res.Edges)
	}
	if !strings.Contains(res.Source, "module.exports = 42") {
		t.Errorf("Source = %q", res.Source)
	}
}

func TestExtractNestedAndShadowedRequire(t *testing.T) {
	t.Parallel()

	x := newTestExtractor(t)
	src := `function load(require) { return require('./a'); }
module.exports = () => require('./lib/b');`

	res, err := x.Extract("/proj/src/index.js", src)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	ids := make([]string, 0, len(res.Edges))
	for _, e := range res.Edges {
		ids = append(ids, e.ID)
	}
	if diff := cmp.Diff([]string{"./src/a.js", "./src/lib/b.js"}, ids); diff != "" {
		t.Errorf("edge ids mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{"variable argument", "const n = './a'; require(n);", ErrDynamicRequire},
		{"template literal", "require(`./a`);", ErrDynamicRequire},
		{"concatenation", "require('./' + 'a');", ErrDynamicRequire},
		{"no arguments", "require();", ErrDynamicRequire},
		{"spread argument", "require(...['./a']);", ErrDynamicRequire},
		{"syntax error", "const = ;", ErrSyntax},
		{"missing module", "require('./nope');", resolve.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			x := newTestExtractor(t)
			_, err := x.Extract("/proj/src/index.js", tt.src)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Extract() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExtractParseErrorCarriesPath(t *testing.T) {
	t.Parallel()

	x := newTestExtractor(t)
	_, err := x.Extract("/proj/src/index.js", "require(dynamic)")

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %T, want *ParseError", err)
	}
	if perr.Path != "/proj/src/index.js" {
		t.Errorf("Path = %q", perr.Path)
	}
	if !strings.Contains(perr.Error(), "/proj/src/index.js") {
		t.Errorf("Error() = %q, want path included", perr.Error())
	}
}

func TestUnquote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`'./a'`, "./a", false},
		{`"./a"`, "./a", false},
		{`'./it\'s'`, "./it's", false},
		{`"./\x61"`, "./a", false},
		{`"./\u0062"`, "./b", false},
		{`"./\u{63}"`, "./c", false},
		{`"\ud83d\ude00"`, "\U0001F600", false},
		{`"./a`, "", true},
		{`'./a"`, "", true},
		{`"\x6"`, "", true},
	}

	for _, tt := range tests {
		got, err := unquote([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("unquote(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("unquote(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
