// SPDX-License-Identifier: MPL-2.0

package compiler

import (
	"encoding/json"
	"time"

	"github.com/minipack/minipack/internal/chunk"
	"github.com/minipack/minipack/internal/graph"
)

type (
	// Stats describes the outcome of one pass.
	Stats struct {
		Modules []ModuleStats
		Chunks  []ChunkStats
		Assets  []AssetStats
		// FileDependencies lists every module file the pass read, in
		// first read order.
		FileDependencies []string
		// Order lists module ids dependencies first. Modules on a require
		// cycle are missing from it.
		Order []string
		// Cycle is one require cycle of the graph, first id repeated last.
		Cycle    []string
		Duration time.Duration
	}

	// ModuleStats describes one module record.
	ModuleStats struct {
		ID           string   `json:"id"`
		Path         string   `json:"path"`
		Names        []string `json:"names"`
		Dependencies []string `json:"dependencies"`
		Size         int      `json:"size"`
	}

	// ChunkStats describes one chunk.
	ChunkStats struct {
		Name    string   `json:"name"`
		Entry   string   `json:"entry"`
		Modules []string `json:"modules"`
	}

	// AssetStats describes one written asset.
	AssetStats struct {
		Name     string `json:"name"`
		Filename string `json:"filename"`
		Path     string `json:"path"`
		Size     int    `json:"size"`
	}

	// StatsOptions selects the sections rendered by Stats.JSON.
	StatsOptions struct {
		Modules bool
		Chunks  bool
		Assets  bool
	}
)

// AllStats selects every section.
var AllStats = StatsOptions{Modules: true, Chunks: true, Assets: true}

func (s *Stats) fill(table []*graph.Module, chunks []chunk.Chunk, assets []Asset, paths []string) {
	s.Modules = make([]ModuleStats, 0, len(table))
	for _, m := range table {
		deps := make([]string, 0, len(m.Dependencies))
		for _, d := range m.Dependencies {
			deps = append(deps, d.ID)
		}
		s.Modules = append(s.Modules, ModuleStats{
			ID:           m.ID,
			Path:         m.Path,
			Names:        append([]string(nil), m.Names...),
			Dependencies: deps,
			Size:         len(m.Source),
		})
	}

	s.Chunks = make([]ChunkStats, 0, len(chunks))
	for _, ch := range chunks {
		ids := make([]string, 0, len(ch.Modules))
		for _, m := range ch.Modules {
			ids = append(ids, m.ID)
		}
		s.Chunks = append(s.Chunks, ChunkStats{Name: ch.Name, Entry: ch.Entry.ID, Modules: ids})
	}

	s.Assets = make([]AssetStats, 0, len(assets))
	for i, a := range assets {
		s.Assets = append(s.Assets, AssetStats{
			Name:     a.Name,
			Filename: a.Filename,
			Path:     paths[i],
			Size:     len(a.Content),
		})
	}
}

// JSON renders the sections selected by opts as indented JSON. The
// duration is always present, in milliseconds.
func (s *Stats) JSON(opts StatsOptions) ([]byte, error) {
	doc := map[string]any{"time": s.Duration.Milliseconds()}
	if opts.Modules {
		doc["modules"] = nonNil(s.Modules)
	}
	if opts.Chunks {
		doc["chunks"] = nonNil(s.Chunks)
	}
	if opts.Assets {
		doc["assets"] = nonNil(s.Assets)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// nonNil keeps empty sections rendering as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
