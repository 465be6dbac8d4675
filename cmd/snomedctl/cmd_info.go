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
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/snomedgraph/services/snomed/snapshot"
)

// =============================================================================
// INFO FLAGS
// =============================================================================

var infoSnapshot string

// =============================================================================
// INFO COMMAND
// =============================================================================

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show what the graph store holds",
	Long: `Info reads the stored graph's metadata without loading the graph:
vertex and edge counts, the build identifier, and the build time.

With --snapshot FILE it inspects a snapshot file instead of the store.

Examples:
  snomedctl info
  snomedctl info --snapshot release.snap --json`,
	Args: cobra.NoArgs,
	Run:  runInfo,
}

func init() {
	infoCmd.Flags().StringVar(&infoSnapshot, "snapshot", "", "Inspect a snapshot file instead of the store")
}

// =============================================================================
// INFO EXECUTION
// =============================================================================

// infoResult is the scripting shape of the metadata.
type infoResult struct {
	APIVersion string    `json:"api_version"`
	Success    bool      `json:"success"`
	Source     string    `json:"source"`
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Vertices   int       `json:"vertices"`
	Edges      int       `json:"edges"`
}

func runInfo(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		meta   *snapshot.Header
		source string
		err    error
	)
	if infoSnapshot != "" {
		source = infoSnapshot
		meta, err = snapshot.Inspect(infoSnapshot)
		if err != nil {
			outputError("Failed to inspect snapshot", err)
			os.Exit(exitError)
		}
	} else {
		source = config.Store
		db, openErr := openStore()
		if openErr != nil {
			outputError("Failed to open store", openErr)
			os.Exit(exitError)
		}
		defer db.Close()

		meta, err = db.Meta(ctx)
		if err != nil {
			outputError("Failed to read store", err)
			os.Exit(exitError)
		}
	}

	if jsonOutput {
		outputJSON(infoResult{
			APIVersion: apiVersion,
			Success:    true,
			Source:     source,
			ID:         meta.ID,
			CreatedAt:  meta.CreatedAt,
			Vertices:   meta.Nodes,
			Edges:      meta.Edges,
		})
		return
	}

	fmt.Printf("SNOMED graph has %d vertices and %d edges\n", meta.Nodes, meta.Edges)
	if stdoutIsTTY() {
		fmt.Printf("\nSource:  %s\nID:      %s\nCreated: %s\n",
			source, meta.ID, meta.CreatedAt.Format(time.RFC3339))
	}
}
