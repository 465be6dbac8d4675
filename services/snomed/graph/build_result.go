// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import "fmt"

// BuildWarning records a recoverable anomaly encountered while building.
// Warnings never abort the build; they are collected on the BuildResult and
// logged through the builder's logger.
type BuildWarning struct {
	// ConceptID is the concept the warning concerns.
	ConceptID uint64

	// PromotedTerm is the synonym promoted to fully specified name for a
	// concept that has no FSN description row.
	PromotedTerm string
}

// String renders the warning in log-friendly form.
func (w BuildWarning) String() string {
	return fmt.Sprintf("concept %d has no FSN; using synonym %q instead", w.ConceptID, w.PromotedTerm)
}

// BuildStats contains statistics about a build operation.
type BuildStats struct {
	// RelationshipRows is the number of relationship rows received.
	RelationshipRows int

	// ActiveRelationshipRows is the number of relationship rows kept after
	// the active filter.
	ActiveRelationshipRows int

	// DescriptionRows is the number of description rows received.
	DescriptionRows int

	// ActiveDescriptionRows is the number of description rows kept after
	// the active filter.
	ActiveDescriptionRows int

	// TypesResolved is the number of distinct relationship types whose
	// display names were resolved.
	TypesResolved int

	// ConceptsDescribed is the number of concepts that received attributes
	// from description rows.
	ConceptsDescribed int

	// ConceptCount is the number of concepts in the finished graph, after
	// isolate removal.
	ConceptCount int

	// EdgeCount is the number of distinct (source, target) relationships in
	// the finished graph.
	EdgeCount int

	// IsolatesRemoved is the number of zero-degree concepts pruned after
	// construction.
	IsolatesRemoved int

	// FSNPromotions is the number of concepts whose first synonym was
	// promoted to FSN.
	FSNPromotions int

	// DurationMilli is the total build time in milliseconds.
	// NOTE: For fast builds (< 1ms), this rounds to 0. Use DurationMicro for precision.
	DurationMilli int64

	// DurationMicro is the total build time in microseconds (for sub-millisecond precision).
	DurationMicro int64
}

// BuildResult contains the result of a graph build operation.
//
// A fatal condition (an unresolvable relationship type, or cancellation)
// produces no graph: construction is all-or-nothing into a fresh store.
// Recoverable anomalies are collected as warnings alongside a complete graph.
type BuildResult struct {
	// Graph is the constructed graph. Nil when the build failed or was
	// cancelled; complete and frozen otherwise.
	Graph *Graph

	// Warnings contains the recoverable anomalies encountered.
	Warnings []BuildWarning

	// Stats contains build statistics.
	Stats BuildStats

	// Incomplete is true if the build was cancelled via context. Stats and
	// Warnings cover the work done up to that point; Graph is nil.
	Incomplete bool
}

// HasWarnings returns true if any recoverable anomalies were recorded.
func (r *BuildResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Success returns true if the build completed and produced a graph.
func (r *BuildResult) Success() bool {
	return !r.Incomplete && r.Graph != nil
}
