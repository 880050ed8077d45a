// SPDX-License-Identifier: MPL-2.0

package chunk

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/minipack/minipack/internal/graph"
)

func chunkIDs(c Chunk) []string {
	var out []string
	for _, m := range c.Modules {
		out = append(out, m.ID)
	}
	return out
}

func TestAssemble(t *testing.T) {
	t.Parallel()

	table := []*graph.Module{
		{ID: "./a.js", Names: []string{"a"}},
		{ID: "./shared.js", Names: []string{"a", "b"}},
		{ID: "./only-a.js", Names: []string{"a"}},
		{ID: "./b.js", Names: []string{"b"}},
		{ID: "./only-b.js", Names: []string{"b"}},
		{ID: "./circular-entry.js", Names: []string{"b", "a"}},
	}

	chunks, err := Assemble([]Entry{{Name: "a", ID: "./a.js"}, {Name: "b", ID: "./b.js"}}, table)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}

	tests := []struct {
		name  string
		entry string
		want  []string
	}{
		{"a", "./a.js", []string{"./shared.js", "./only-a.js", "./circular-entry.js"}},
		{"b", "./b.js", []string{"./shared.js", "./only-b.js", "./circular-entry.js"}},
	}
	for i, tt := range tests {
		c := chunks[i]
		if c.Name != tt.name || c.Entry.ID != tt.entry {
			t.Errorf("chunk %d = %s/%s, want %s/%s", i, c.Name, c.Entry.ID, tt.name, tt.entry)
		}
		if diff := cmp.Diff(tt.want, chunkIDs(c)); diff != "" {
			t.Errorf("chunk %s modules mismatch (-want +got):\n%s", tt.name, diff)
		}
	}

	if chunks[0].Modules[0] != chunks[1].Modules[0] {
		t.Error("shared module should be the same record in both chunks")
	}
}

func TestAssembleExcludesEntry(t *testing.T) {
	t.Parallel()

	// An entry reached by another entry carries both names.
	table := []*graph.Module{
		{ID: "./a.js", Names: []string{"a"}},
		{ID: "./b.js", Names: []string{"b", "a"}},
	}
	chunks, err := Assemble([]Entry{{Name: "a", ID: "./a.js"}, {Name: "b", ID: "./b.js"}}, table)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if diff := cmp.Diff([]string{"./b.js"}, chunkIDs(chunks[0])); diff != "" {
		t.Errorf("chunk a mismatch (-want +got):\n%s", diff)
	}
	if len(chunks[1].Modules) != 0 {
		t.Errorf("chunk b modules = %v, want none", chunkIDs(chunks[1]))
	}
}

func TestAssembleMissingEntry(t *testing.T) {
	t.Parallel()

	_, err := Assemble([]Entry{{Name: "main", ID: "./nope.js"}}, nil)
	if !errors.Is(err, ErrMissingEntry) {
		t.Fatalf("Assemble() error = %v, want ErrMissingEntry", err)
	}
}
