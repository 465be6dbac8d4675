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
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/snomedgraph/services/snomed/graph"
)

// =============================================================================
// QUERY FLAGS
// =============================================================================

var querySteps int

// =============================================================================
// QUERY COMMANDS
// =============================================================================

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the stored graph",
	Long: `Query loads the stored graph and answers hierarchy, relationship, and
path questions about it.

Concepts are addressed by SCTID. Traversal commands accept --steps to
bound the walk; 0 keeps the operation's own default.

Examples:
  snomedctl query parents 22298006
  snomedctl query descendants 64572001 --steps 2
  snomedctl query path 22298006 80891009 --json`,
}

var queryParentsCmd = &cobra.Command{
	Use:   "parents SCTID",
	Short: "List the direct is-a parents of a concept",
	Args:  cobra.ExactArgs(1),
	Run:   runQueryParents,
}

var queryChildrenCmd = &cobra.Command{
	Use:   "children SCTID",
	Short: "List the direct is-a children of a concept",
	Args:  cobra.ExactArgs(1),
	Run:   runQueryChildren,
}

var queryAncestorsCmd = &cobra.Command{
	Use:   "ancestors SCTID",
	Short: "List every concept that subsumes a concept",
	Long: `Ancestors walks the is-a hierarchy upward and reports every concept
reached. The SNOMED CT root concept is not reported. With --steps N the
walk stops after N hops; 0 walks to the top.`,
	Args: cobra.ExactArgs(1),
	Run:  runQueryAncestors,
}

var queryDescendantsCmd = &cobra.Command{
	Use:   "descendants SCTID",
	Short: "List every concept subsumed by a concept",
	Long: `Descendants walks the is-a hierarchy downward and reports every concept
reached. With --steps N the walk stops after N hops; 0 walks to the
leaves.`,
	Args: cobra.ExactArgs(1),
	Run:  runQueryDescendants,
}

var queryNeighbourhoodCmd = &cobra.Command{
	Use:   "neighbourhood SCTID",
	Short: "List the hierarchical neighbours of a concept",
	Long: `Neighbourhood unions direct parents and children at every hop, so two
steps reach siblings and other lateral relatives. The queried concept and
the SNOMED CT root are never reported. The default reach is one hop;
--steps N extends it.`,
	Args: cobra.ExactArgs(1),
	Run:  runQueryNeighbourhood,
}

var queryPathCmd = &cobra.Command{
	Use:   "path SCTID1 SCTID2",
	Short: "Find a shortest relationship path between two concepts",
	Long: `Path searches for a shortest directed path from the first concept to
the second over every relationship type. When no forward path exists the
reverse direction is tried; the reported endpoints are those of the path
actually found.`,
	Args: cobra.ExactArgs(2),
	Run:  runQueryPath,
}

var queryRootPathCmd = &cobra.Command{
	Use:   "root-path SCTID",
	Short: "Find a shortest is-a path from a concept to the root",
	Args:  cobra.ExactArgs(1),
	Run:   runQueryRootPath,
}

var queryTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the relationship types present in the graph",
	Args:  cobra.NoArgs,
	Run:   runQueryTypes,
}

var queryConceptCmd = &cobra.Command{
	Use:   "concept SCTID",
	Short: "Show everything the graph knows about a concept",
	Long: `Concept reports the concept's fully specified name, hierarchy tag, and
synonyms together with its direct parents, direct children, and its
non-hierarchical relationships grouped by role group.`,
	Args: cobra.ExactArgs(1),
	Run:  runQueryConcept,
}

func init() {
	queryAncestorsCmd.Flags().IntVar(&querySteps, "steps", 0, "Maximum traversal steps (0 = operation default)")
	queryDescendantsCmd.Flags().IntVar(&querySteps, "steps", 0, "Maximum traversal steps (0 = operation default)")
	queryNeighbourhoodCmd.Flags().IntVar(&querySteps, "steps", 0, "Maximum traversal steps (0 = operation default)")

	queryCmd.AddCommand(queryParentsCmd)
	queryCmd.AddCommand(queryChildrenCmd)
	queryCmd.AddCommand(queryAncestorsCmd)
	queryCmd.AddCommand(queryDescendantsCmd)
	queryCmd.AddCommand(queryNeighbourhoodCmd)
	queryCmd.AddCommand(queryPathCmd)
	queryCmd.AddCommand(queryRootPathCmd)
	queryCmd.AddCommand(queryTypesCmd)
	queryCmd.AddCommand(queryConceptCmd)
}

// =============================================================================
// QUERY EXECUTION
// =============================================================================

// parseSCTID parses a command line concept identifier.
func parseSCTID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid SCTID %q", arg)
	}
	return id, nil
}

// stepOptions translates the --steps flag into query options. Zero keeps
// the operation's own default; negative values are passed through so the
// engine rejects them.
func stepOptions() []graph.QueryOption {
	if querySteps == 0 {
		return nil
	}
	return []graph.QueryOption{graph.WithMaxSteps(querySteps)}
}

// runConceptListQuery is the shared driver for queries that return a list
// of concepts.
func runConceptListQuery(arg, name string, query func(ctx context.Context, g *graph.Graph, sctid uint64) ([]graph.Concept, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	sctid, err := parseSCTID(arg)
	if err != nil {
		outputError("Invalid argument", err)
		os.Exit(exitError)
	}

	g, err := loadStoredGraph(ctx)
	if err != nil {
		outputError("Failed to load graph", err)
		os.Exit(exitError)
	}

	concepts, err := query(ctx, g, sctid)
	if err != nil {
		outputError("Query failed", err)
		os.Exit(exitError)
	}

	if jsonOutput {
		outputJSON(newConceptListResult(name, sctid, concepts))
		return
	}
	printConceptList(fmt.Sprintf("%s of %d:", name, sctid), concepts)
}

func runQueryParents(cmd *cobra.Command, args []string) {
	runConceptListQuery(args[0], "Parents", func(ctx context.Context, g *graph.Graph, sctid uint64) ([]graph.Concept, error) {
		return g.Parents(ctx, sctid)
	})
}

func runQueryChildren(cmd *cobra.Command, args []string) {
	runConceptListQuery(args[0], "Children", func(ctx context.Context, g *graph.Graph, sctid uint64) ([]graph.Concept, error) {
		return g.Children(ctx, sctid)
	})
}

func runQueryAncestors(cmd *cobra.Command, args []string) {
	runConceptListQuery(args[0], "Ancestors", func(ctx context.Context, g *graph.Graph, sctid uint64) ([]graph.Concept, error) {
		return g.Ancestors(ctx, sctid, stepOptions()...)
	})
}

func runQueryDescendants(cmd *cobra.Command, args []string) {
	runConceptListQuery(args[0], "Descendants", func(ctx context.Context, g *graph.Graph, sctid uint64) ([]graph.Concept, error) {
		return g.Descendants(ctx, sctid, stepOptions()...)
	})
}

func runQueryNeighbourhood(cmd *cobra.Command, args []string) {
	runConceptListQuery(args[0], "Neighbourhood", func(ctx context.Context, g *graph.Graph, sctid uint64) ([]graph.Concept, error) {
		return g.Neighbourhood(ctx, sctid, stepOptions()...)
	})
}

func runQueryPath(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	sctid1, err := parseSCTID(args[0])
	if err != nil {
		outputError("Invalid argument", err)
		os.Exit(exitError)
	}
	sctid2, err := parseSCTID(args[1])
	if err != nil {
		outputError("Invalid argument", err)
		os.Exit(exitError)
	}

	g, err := loadStoredGraph(ctx)
	if err != nil {
		outputError("Failed to load graph", err)
		os.Exit(exitError)
	}

	result, err := g.FindPath(ctx, sctid1, sctid2)
	if err != nil {
		outputError("Query failed", err)
		os.Exit(exitError)
	}

	if jsonOutput {
		outputJSON(newPathResult(result))
		return
	}
	printPath(result)
}

func runQueryRootPath(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	sctid, err := parseSCTID(args[0])
	if err != nil {
		outputError("Invalid argument", err)
		os.Exit(exitError)
	}

	g, err := loadStoredGraph(ctx)
	if err != nil {
		outputError("Failed to load graph", err)
		os.Exit(exitError)
	}

	result, err := g.PathToRoot(ctx, sctid)
	if err != nil {
		outputError("Query failed", err)
		os.Exit(exitError)
	}

	if jsonOutput {
		outputJSON(newPathResult(result))
		return
	}
	printPath(result)
}

func runQueryTypes(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	g, err := loadStoredGraph(ctx)
	if err != nil {
		outputError("Failed to load graph", err)
		os.Exit(exitError)
	}

	types := g.RelationshipTypes()

	if jsonOutput {
		outputJSON(typesResult{
			APIVersion: apiVersion,
			Success:    true,
			TotalCount: len(types),
			Types:      types,
		})
		return
	}

	if stdoutIsTTY() {
		fmt.Printf("Relationship types (%d):\n\n", len(types))
		for _, t := range types {
			fmt.Printf("  %s\n", t)
		}
		return
	}
	for _, t := range types {
		fmt.Println(t)
	}
}

func runQueryConcept(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	sctid, err := parseSCTID(args[0])
	if err != nil {
		outputError("Invalid argument", err)
		os.Exit(exitError)
	}

	g, err := loadStoredGraph(ctx)
	if err != nil {
		outputError("Failed to load graph", err)
		os.Exit(exitError)
	}

	view, err := g.FullConcept(ctx, sctid)
	if err != nil {
		outputError("Query failed", err)
		os.Exit(exitError)
	}

	if jsonOutput {
		outputJSON(newConceptViewResult(view))
		return
	}
	printConceptView(view)
}

// printConceptView renders a full-concept view as text.
func printConceptView(view *graph.ConceptView) {
	fmt.Println(view.Concept.String())
	if h := view.Concept.Hierarchy(); h != "" {
		fmt.Printf("Hierarchy: %s\n", h)
	}
	if len(view.Concept.Synonyms) > 0 {
		fmt.Println("Synonyms:")
		for _, s := range view.Concept.Synonyms {
			fmt.Printf("  - %s\n", s)
		}
	}

	fmt.Println("\nParents:")
	if len(view.Parents) == 0 {
		fmt.Println("  None.")
	}
	for _, c := range view.Parents {
		fmt.Printf("  %s\n", c)
	}

	fmt.Println("\nChildren:")
	if len(view.Children) == 0 {
		fmt.Println("  None.")
	}
	for _, c := range view.Children {
		fmt.Printf("  %s\n", c)
	}

	if len(view.InferredRelationships) > 0 {
		fmt.Println("\nRelationships:")
		for _, rg := range view.InferredRelationships {
			fmt.Println(rg.String())
		}
	}
}
