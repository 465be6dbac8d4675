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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/snomedgraph/services/snomed/graph"
	"github.com/AleutianAI/snomedgraph/services/snomed/rf2"
	"github.com/AleutianAI/snomedgraph/services/snomed/snapshot"
)

// =============================================================================
// BUILD FLAGS
// =============================================================================

var (
	buildLanguage string
	buildSnapshot string
)

// =============================================================================
// BUILD COMMAND
// =============================================================================

var buildCmd = &cobra.Command{
	Use:   "build RELEASE_DIR",
	Short: "Build the graph from an RF2 release and persist it",
	Long: `Build loads the concept, description, and relationship snapshot files
from an RF2 release directory, constructs the graph, and writes it to the
graph store. Earlier store contents are replaced.

With --snapshot, the finished graph is also written as a portable
compressed snapshot file.

Examples:
  snomedctl build ./SnomedCT_InternationalRF2/Snapshot
  snomedctl build ./Snapshot --language en --snapshot release.snap
  snomedctl build ./Snapshot --store /var/lib/snomedgraph`,
	Args: cobra.ExactArgs(1),
	Run:  runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildLanguage, "language", graph.DefaultLanguageCode, "Description language code")
	buildCmd.Flags().StringVar(&buildSnapshot, "snapshot", "", "Also write a snapshot file to this path")
}

// =============================================================================
// BUILD EXECUTION
// =============================================================================

// buildResultJSON is the scripting shape of a build summary.
type buildResultJSON struct {
	APIVersion      string `json:"api_version"`
	Success         bool   `json:"success"`
	Vertices        int    `json:"vertices"`
	Edges           int    `json:"edges"`
	IsolatesRemoved int    `json:"isolates_removed"`
	FSNPromotions   int    `json:"fsn_promotions"`
	Warnings        int    `json:"warnings"`
	DurationMS      int64  `json:"duration_ms"`
	Store           string `json:"store"`
	Snapshot        string `json:"snapshot,omitempty"`
}

func runBuild(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()

	result, err := rf2.LoadRelease(ctx, args[0],
		rf2.WithLanguageCode(buildLanguage),
		rf2.WithLoadLogger(logger.Slog()),
	)
	if err != nil {
		outputError("Build failed", err)
		os.Exit(exitError)
	}
	g := result.Graph

	db, err := openStore()
	if err != nil {
		outputError("Failed to open store", err)
		os.Exit(exitError)
	}
	defer db.Close()

	if err := db.SaveGraph(ctx, g); err != nil {
		outputError("Failed to persist graph", err)
		os.Exit(exitError)
	}
	logger.Info("graph persisted", "store", config.Store)

	if buildSnapshot != "" {
		if err := snapshot.Save(buildSnapshot, g); err != nil {
			outputError("Failed to write snapshot", err)
			os.Exit(exitError)
		}
		logger.Info("snapshot written", "path", buildSnapshot)
	}

	if jsonOutput {
		outputJSON(buildResultJSON{
			APIVersion:      apiVersion,
			Success:         true,
			Vertices:        g.Len(),
			Edges:           g.EdgeCount(),
			IsolatesRemoved: result.Stats.IsolatesRemoved,
			FSNPromotions:   result.Stats.FSNPromotions,
			Warnings:        len(result.Warnings),
			DurationMS:      result.Stats.DurationMilli,
			Store:           config.Store,
			Snapshot:        buildSnapshot,
		})
		return
	}

	fmt.Printf("SNOMED graph has %d vertices and %d edges\n", g.Len(), g.EdgeCount())
	if result.HasWarnings() {
		fmt.Printf("%d build warnings (see log)\n", len(result.Warnings))
	}
}
