// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/snomedgraph/services/snomed/graph"
)

// =============================================================================
// EXPORT FLAGS
// =============================================================================

var exportDir string

// =============================================================================
// EXPORT COMMAND
// =============================================================================

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the stored graph as CSV files",
	Long: `Export writes the stored graph as two CSV files for use in spreadsheet
and dataframe tools.

nodes.csv has one row per concept: sctid, fsn, synonyms (pipe-joined).
edges.csv has one row per relationship: source, target, group, type,
type_id. Rows are sorted by identifier so repeated exports diff cleanly.

Examples:
  snomedctl export --dir ./out
  snomedctl export --dir ./out --json`,
	Args: cobra.NoArgs,
	Run:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", ".", "Output directory for the CSV files")
}

// =============================================================================
// EXPORT EXECUTION
// =============================================================================

// exportResult is the scripting shape of an export summary.
type exportResult struct {
	APIVersion string `json:"api_version"`
	Success    bool   `json:"success"`
	Vertices   int    `json:"vertices"`
	Edges      int    `json:"edges"`
	NodesCSV   string `json:"nodes_csv"`
	EdgesCSV   string `json:"edges_csv"`
}

func runExport(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	g, err := loadStoredGraph(ctx)
	if err != nil {
		outputError("Failed to load graph", err)
		os.Exit(exitError)
	}

	if err := os.MkdirAll(exportDir, 0750); err != nil {
		outputError("Failed to create output directory", err)
		os.Exit(exitError)
	}

	nodesPath := filepath.Join(exportDir, "nodes.csv")
	edgesPath := filepath.Join(exportDir, "edges.csv")

	if err := writeNodesCSV(nodesPath, g); err != nil {
		outputError("Export failed", err)
		os.Exit(exitError)
	}
	if err := writeEdgesCSV(edgesPath, g); err != nil {
		outputError("Export failed", err)
		os.Exit(exitError)
	}

	if jsonOutput {
		outputJSON(exportResult{
			APIVersion: apiVersion,
			Success:    true,
			Vertices:   g.Len(),
			Edges:      g.EdgeCount(),
			NodesCSV:   nodesPath,
			EdgesCSV:   edgesPath,
		})
		return
	}
	fmt.Printf("Exported %d concepts to %s and %d relationships to %s\n",
		g.Len(), nodesPath, g.EdgeCount(), edgesPath)
}

// writeNodesCSV writes one row per concept, sorted by SCTID.
func writeNodesCSV(path string, g *graph.Graph) error {
	concepts := make([]graph.Concept, 0, g.Len())
	for c := range g.Concepts() {
		concepts = append(concepts, c)
	}
	sort.Slice(concepts, func(i, j int) bool { return concepts[i].ID < concepts[j].ID })

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"sctid", "fsn", "synonyms"}); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	for _, c := range concepts {
		record := []string{
			strconv.FormatUint(c.ID, 10),
			c.FSN,
			strings.Join(c.Synonyms, "|"),
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// writeEdgesCSV writes one row per relationship, sorted by source then
// target.
func writeEdgesCSV(path string, g *graph.Graph) error {
	rels := make([]graph.Relationship, 0, g.EdgeCount())
	for r := range g.Relationships() {
		rels = append(rels, r)
	}
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].Source.ID != rels[j].Source.ID {
			return rels[i].Source.ID < rels[j].Source.ID
		}
		return rels[i].Target.ID < rels[j].Target.ID
	})

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"source", "target", "group", "type", "type_id"}); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	for _, r := range rels {
		record := []string{
			strconv.FormatUint(r.Source.ID, 10),
			strconv.FormatUint(r.Target.ID, 10),
			strconv.Itoa(r.Group),
			r.Type,
			strconv.FormatUint(r.TypeID, 10),
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
