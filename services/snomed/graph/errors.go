// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides an in-memory directed graph of a SNOMED CT release.
//
// Nodes are concepts (SCTID, fully specified name, synonyms) and edges are
// typed, grouped relationships between concepts. The hierarchical "is a"
// relation forms the parent/child structure; all other relationship types are
// the "inferred" clinical attributes of a concept.
//
// # Ownership Model
//
// The graph owns its concept records:
//   - Concept values returned by queries are copies; mutating them does not
//     affect the graph.
//   - Synonym slices are shared with the store for memory efficiency and
//     MUST NOT be mutated by callers.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use during building. It is designed for:
//   - Single-writer access during the build phase (AddConcept, AddRelationship)
//   - Read-only access after Freeze() is called
//
// After Freeze(), the graph can be safely read from multiple goroutines.
//
// # Lifecycle
//
// A typical graph lifecycle:
//  1. Create with NewGraph()
//  2. Populate via Builder.Build() or a persistence loader
//  3. Call Freeze() to finalize
//  4. Query with Parents(), Ancestors(), FindPath(), etc.
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrGraphFrozen is returned when attempting to modify a frozen graph.
	// Once Freeze() is called, the graph becomes read-only and no further
	// concepts or relationships can be added.
	ErrGraphFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrConceptNotFound is returned when a query names an identifier that
	// is not present in the graph.
	ErrConceptNotFound = errors.New("concept not found")

	// ErrInvalidMaxSteps is returned when a traversal depth limit is
	// explicitly set to zero or a negative value. Omit the option entirely
	// for an unbounded traversal.
	ErrInvalidMaxSteps = errors.New("max steps must be greater than zero")

	// ErrUnresolvedRelationshipType is returned by the builder when a
	// relationship row's type identifier has no active fully-specified-name
	// description row to resolve its display name from. This aborts the
	// build; no graph is produced.
	ErrUnresolvedRelationshipType = errors.New("relationship type has no resolvable name")

	// ErrBuildCancelled is returned when a build operation is cancelled via context.
	ErrBuildCancelled = errors.New("build cancelled")

	// ErrNotFrozen is returned by operations that require a finalized graph,
	// such as persistence snapshots taken while a build is still in flight.
	ErrNotFrozen = errors.New("graph is still building")
)
