// SPDX-License-Identifier: MPL-2.0

// Package chunk partitions a module table into one chunk per entry.
package chunk

import (
	"errors"
	"fmt"

	"github.com/minipack/minipack/internal/graph"
)

// ErrMissingEntry is returned when an entry has no module in the table.
var ErrMissingEntry = errors.New("entry module not in module table")

type (
	// Entry names the module a chunk starts from.
	Entry struct {
		Name string
		ID   string
	}

	// Chunk is everything one entry's asset must contain. Modules never holds
	// Entry itself. Modules shared between entries appear in every chunk
	// that reaches them.
	Chunk struct {
		Name    string
		Entry   *graph.Module
		Modules []*graph.Module
	}
)

// Assemble returns one chunk per entry, in entry order. Each chunk lists, in
// table order, every module whose Names contain the entry.
func Assemble(entries []Entry, table []*graph.Module) ([]Chunk, error) {
	byID := make(map[string]*graph.Module, len(table))
	for _, m := range table {
		byID[m.ID] = m
	}

	chunks := make([]Chunk, 0, len(entries))
	for _, e := range entries {
		entry, ok := byID[e.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %s (%s)", ErrMissingEntry, e.Name, e.ID)
		}
		c := Chunk{Name: e.Name, Entry: entry}
		for _, m := range table {
			if m != entry && m.HasName(e.Name) {
				c.Modules = append(c.Modules, m)
			}
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}
