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
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/snomedgraph/services/snomed/graph"
)

// =============================================================================
// EXIT CODES AND API VERSION
// =============================================================================

const (
	exitSuccess = 0
	exitError   = 1

	// apiVersion tags JSON output so scripts can detect shape changes.
	apiVersion = "v1"
)

// =============================================================================
// JSON SHAPES
// =============================================================================

// conceptJSON is the scripting shape of one concept.
type conceptJSON struct {
	SCTID     uint64   `json:"sctid"`
	FSN       string   `json:"fsn"`
	Hierarchy string   `json:"hierarchy,omitempty"`
	Synonyms  []string `json:"synonyms,omitempty"`
}

func newConceptJSON(c graph.Concept) conceptJSON {
	return conceptJSON{
		SCTID:     c.ID,
		FSN:       c.FSN,
		Hierarchy: c.Hierarchy(),
		Synonyms:  c.Synonyms,
	}
}

func conceptListJSON(concepts []graph.Concept) []conceptJSON {
	out := make([]conceptJSON, 0, len(concepts))
	for _, c := range concepts {
		out = append(out, newConceptJSON(c))
	}
	return out
}

// relationshipJSON is the scripting shape of one directed edge.
type relationshipJSON struct {
	Source uint64 `json:"source"`
	Target uint64 `json:"target"`
	Group  int    `json:"group"`
	Type   string `json:"type"`
	TypeID uint64 `json:"type_id"`
}

func newRelationshipJSON(r graph.Relationship) relationshipJSON {
	return relationshipJSON{
		Source: r.Source.ID,
		Target: r.Target.ID,
		Group:  r.Group,
		Type:   r.Type,
		TypeID: r.TypeID,
	}
}

// groupJSON is the scripting shape of one relationship group.
type groupJSON struct {
	Group         int                `json:"group"`
	Relationships []relationshipJSON `json:"relationships"`
}

func groupListJSON(groups []graph.RelationshipGroup) []groupJSON {
	out := make([]groupJSON, 0, len(groups))
	for _, rg := range groups {
		gj := groupJSON{Group: rg.Group}
		for _, r := range rg.Relationships {
			gj.Relationships = append(gj.Relationships, newRelationshipJSON(r))
		}
		out = append(out, gj)
	}
	return out
}

// conceptListResult is the JSON envelope for queries that return a list
// of concepts.
type conceptListResult struct {
	APIVersion string        `json:"api_version"`
	Success    bool          `json:"success"`
	Query      string        `json:"query"`
	SCTID      uint64        `json:"sctid"`
	TotalCount int           `json:"total_count"`
	Concepts   []conceptJSON `json:"concepts"`
}

func newConceptListResult(query string, sctid uint64, concepts []graph.Concept) conceptListResult {
	return conceptListResult{
		APIVersion: apiVersion,
		Success:    true,
		Query:      query,
		SCTID:      sctid,
		TotalCount: len(concepts),
		Concepts:   conceptListJSON(concepts),
	}
}

// pathResult is the JSON envelope for path queries.
type pathResult struct {
	APIVersion string             `json:"api_version"`
	Success    bool               `json:"success"`
	From       uint64             `json:"from"`
	To         uint64             `json:"to"`
	Found      bool               `json:"found"`
	Length     int                `json:"length"`
	Path       []relationshipJSON `json:"path"`
}

func newPathResult(p *graph.PathResult) pathResult {
	out := pathResult{
		APIVersion: apiVersion,
		Success:    true,
		From:       p.From,
		To:         p.To,
		Found:      p.Length >= 0,
		Length:     p.Length,
		Path:       make([]relationshipJSON, 0, len(p.Path)),
	}
	for _, r := range p.Path {
		out.Path = append(out.Path, newRelationshipJSON(r))
	}
	return out
}

// conceptViewResult is the JSON envelope for a full-concept query.
type conceptViewResult struct {
	APIVersion string `json:"api_version"`
	Success    bool   `json:"success"`
	conceptJSON
	Parents            []conceptJSON `json:"parents"`
	Children           []conceptJSON `json:"children"`
	RelationshipGroups []groupJSON   `json:"relationship_groups"`
}

func newConceptViewResult(v *graph.ConceptView) conceptViewResult {
	return conceptViewResult{
		APIVersion:         apiVersion,
		Success:            true,
		conceptJSON:        newConceptJSON(v.Concept),
		Parents:            conceptListJSON(v.Parents),
		Children:           conceptListJSON(v.Children),
		RelationshipGroups: groupListJSON(v.InferredRelationships),
	}
}

// typesResult is the JSON envelope for the relationship-types query.
type typesResult struct {
	APIVersion string   `json:"api_version"`
	Success    bool     `json:"success"`
	TotalCount int      `json:"total_count"`
	Types      []string `json:"types"`
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

// stdoutIsTTY reports whether stdout is an interactive terminal. Piped
// output drops headers and footers so rows stay machine-friendly.
func stdoutIsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// outputJSON writes any result as indented JSON on stdout.
func outputJSON(result interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		os.Exit(exitError)
	}
}

// outputError reports a failure in the active output mode.
func outputError(msg string, err error) {
	if jsonOutput {
		result := map[string]interface{}{
			"api_version": apiVersion,
			"success":     false,
			"error":       err.Error(),
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		encoder.Encode(result)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	}
}

// printConceptList renders concepts as text. On a terminal the list gets
// a title and a count footer; piped output is one "sctid<TAB>fsn" row per
// concept.
func printConceptList(title string, concepts []graph.Concept) {
	if !stdoutIsTTY() {
		for _, c := range concepts {
			fmt.Printf("%d\t%s\n", c.ID, c.FSN)
		}
		return
	}

	fmt.Printf("%s\n\n", title)
	if len(concepts) == 0 {
		fmt.Println("  None found.")
		return
	}
	for _, c := range concepts {
		fmt.Printf("  %s\n", c)
	}
	fmt.Printf("\nFound %d concepts\n", len(concepts))
}

// printPath renders a path query result as text.
func printPath(result *graph.PathResult) {
	if !stdoutIsTTY() {
		fmt.Println(result.String())
		return
	}

	fmt.Printf("Path from %d to %d:\n\n", result.From, result.To)
	if result.Length < 0 {
		fmt.Println("  No path found.")
		return
	}
	fmt.Printf("Path found (%d hops):\n  %s\n", result.Length, result.String())
}
