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

import (
	"fmt"
	"regexp"
	"time"
)

// Well-known SNOMED CT identifiers. These are fixed by the terminology and
// are not configurable per instance.
const (
	// FSNTypeID is the description type identifier marking a row as a
	// concept's fully specified name. All other description rows for a
	// concept are synonyms.
	FSNTypeID uint64 = 900000000000003001

	// IsATypeID is the relationship type identifier of the hierarchical
	// "Is a" (subsumption) relation.
	IsATypeID uint64 = 116680003

	// RootConceptID is the identifier of the single concept at the top of
	// the "is a" hierarchy.
	RootConceptID uint64 = 138875005

	// DefaultLanguageCode selects the description file of a release when no
	// other language is requested.
	DefaultLanguageCode = "en"
)

// hierarchyTagPattern matches the parenthesized semantic tag that SNOMED CT
// appends to fully specified names, e.g. "(disorder)" in
// "Myocardial infarction (disorder)".
var hierarchyTagPattern = regexp.MustCompile(`\(([^)]+)\)\s*$`)

// GraphState represents the lifecycle state of the graph.
type GraphState int

const (
	// GraphStateBuilding indicates the graph is accepting AddConcept and
	// AddRelationship calls.
	GraphStateBuilding GraphState = iota

	// GraphStateReadOnly indicates the graph is frozen and read-only.
	GraphStateReadOnly
)

// String returns the string representation of the GraphState.
func (s GraphState) String() string {
	switch s {
	case GraphStateBuilding:
		return "building"
	case GraphStateReadOnly:
		return "readonly"
	default:
		return "unknown"
	}
}

// Concept holds the attributes of a single SNOMED CT concept.
//
// Identity is the SCTID alone: two Concept values with the same ID denote the
// same concept regardless of name payload, and traversal results deduplicate
// by ID. Concepts referenced by relationships but never described carry an
// empty FSN and a nil synonym list.
type Concept struct {
	// ID is the SCTID, a 64-bit unsigned integer.
	ID uint64

	// FSN is the fully specified name. Empty for undescribed concepts.
	FSN string

	// Synonyms are the non-FSN description terms in release file order.
	// The slice is shared with the store and MUST NOT be mutated.
	Synonyms []string
}

// Hierarchy returns the semantic tag derived from the FSN's parenthesized
// suffix, e.g. "disorder" for "Myocardial infarction (disorder)". Returns
// the empty string when the FSN has no such suffix.
func (c Concept) Hierarchy() string {
	m := hierarchyTagPattern.FindStringSubmatch(c.FSN)
	if m == nil {
		return ""
	}
	return m[1]
}

// String renders the concept as "sctid | fsn".
func (c Concept) String() string {
	return fmt.Sprintf("%d | %s", c.ID, c.FSN)
}

// Relationship is a resolved view of one directed edge: the full source and
// target concepts plus the edge's type and group attributes.
type Relationship struct {
	// Source is the concept the relationship points away from.
	Source Concept

	// Target is the concept the relationship points at.
	Target Concept

	// TypeID is the SCTID of the concept defining the relationship type.
	TypeID uint64

	// Type is the display name of the relationship type, resolved at build
	// time from the type concept's fully specified name.
	Type string

	// Group is the relationship group number. Group 0 means "ungrouped" by
	// SNOMED convention.
	Group int
}

// String renders the relationship as "[src] ---[type]---> [tgt]".
func (r Relationship) String() string {
	return fmt.Sprintf("[%s] ---[%s]---> [%s]", r.Source, r.Type, r.Target)
}

// RelationshipGroup is a non-owning view of the relationships of one source
// concept that share a group number. Groups are derived at query time and
// never stored.
type RelationshipGroup struct {
	// Group is the shared group number.
	Group int

	// Relationships holds the group's members in encounter order.
	Relationships []Relationship
}

// String renders the group header followed by one indented line per member.
func (rg RelationshipGroup) String() string {
	s := fmt.Sprintf("Group %d", rg.Group)
	for _, r := range rg.Relationships {
		s += "\n\t" + r.String()
	}
	return s
}

// ConceptView aggregates everything the graph knows about one concept.
type ConceptView struct {
	// Concept is the concept's own attribute record.
	Concept Concept

	// Parents are the direct "is a" targets.
	Parents []Concept

	// Children are the direct "is a" sources.
	Children []Concept

	// InferredRelationships are the non-hierarchical outgoing relationships
	// grouped by group number.
	InferredRelationships []RelationshipGroup
}

// edge is the stored form of a relationship: endpoint identifiers plus
// attributes. The same *edge is shared between the source node's outgoing
// slice and the target node's incoming slice.
type edge struct {
	from     uint64
	to       uint64
	typeID   uint64
	typeName string
	group    int
}

// node pairs a concept's attribute record with its adjacency. The incoming
// slice is the reverse index that keeps child and parent queries both
// O(degree).
type node struct {
	concept  Concept
	outgoing []*edge
	incoming []*edge
}

// GraphOptions configures Graph behavior.
type GraphOptions struct {
	// ExpectedConcepts pre-sizes the node map. A full international release
	// holds several hundred thousand concepts; sizing up front avoids
	// repeated rehashing during the build.
	ExpectedConcepts int
}

// DefaultGraphOptions returns the defaults for graph configuration.
func DefaultGraphOptions() GraphOptions {
	return GraphOptions{
		ExpectedConcepts: 0,
	}
}

// GraphOption is a functional option for configuring Graph.
type GraphOption func(*GraphOptions)

// WithExpectedConcepts pre-sizes internal storage for n concepts.
func WithExpectedConcepts(n int) GraphOption {
	return func(o *GraphOptions) {
		o.ExpectedConcepts = n
	}
}

// Graph represents one SNOMED CT release as a directed graph.
//
// Thread Safety:
//
//	Graph is NOT safe for concurrent use during building. It is designed
//	for single-writer access during build, then read-only after Freeze().
//	After Freeze() is called, the graph can be safely read from multiple
//	goroutines, but no further modifications are allowed.
//
// Lifecycle:
//
//  1. Create with NewGraph()
//  2. Populate with AddConcept() and AddRelationship() calls
//  3. Call Freeze() to finalize
//  4. Query with Concept(), Parents(), Ancestors(), FindPath(), etc.
type Graph struct {
	// nodes maps SCTID to its node record. Unexported to prevent direct
	// access; query methods return resolved copies.
	nodes map[uint64]*node

	// edgeCount tracks the number of distinct (source, target) edges.
	edgeCount int

	// state is the current lifecycle state.
	state GraphState

	// options contains configuration.
	options GraphOptions

	// builtAtMilli is the Unix timestamp in milliseconds when Freeze() was
	// called. Zero if the graph has not been frozen.
	builtAtMilli int64
}

// NewGraph creates a new empty graph.
//
// Description:
//
//	Creates a graph in the Building state, ready to accept AddConcept and
//	AddRelationship calls. The graph must be frozen with Freeze() before
//	concurrent querying.
//
// Example:
//
//	// Default options
//	g := NewGraph()
//
//	// Pre-sized for a full release
//	g := NewGraph(WithExpectedConcepts(500_000))
func NewGraph(opts ...GraphOption) *Graph {
	options := DefaultGraphOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Graph{
		nodes:   make(map[uint64]*node, options.ExpectedConcepts),
		state:   GraphStateBuilding,
		options: options,
	}
}

// State returns the current lifecycle state of the graph.
func (g *Graph) State() GraphState {
	return g.state
}

// IsFrozen returns true if the graph is in read-only mode.
func (g *Graph) IsFrozen() bool {
	return g.state == GraphStateReadOnly
}

// BuiltAtMilli returns the Unix millisecond timestamp of Freeze(), or zero
// if the graph is still building.
func (g *Graph) BuiltAtMilli() int64 {
	return g.builtAtMilli
}

// Freeze transitions the graph to read-only mode.
//
// Description:
//
//	After calling Freeze(), AddConcept and AddRelationship will return
//	ErrGraphFrozen. This operation is irreversible.
//
// Thread Safety:
//
//	After Freeze() returns, the graph can be safely read from multiple
//	goroutines concurrently.
func (g *Graph) Freeze() {
	g.state = GraphStateReadOnly
	g.builtAtMilli = time.Now().UnixMilli()
}

// Len returns the number of concepts in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// EdgeCount returns the number of distinct (source, target) relationships.
func (g *Graph) EdgeCount() int {
	return g.edgeCount
}

// Contains reports whether the identifier is present in the graph.
func (g *Graph) Contains(id uint64) bool {
	_, ok := g.nodes[id]
	return ok
}

// Concept returns the attribute record for the given identifier.
//
// Description:
//
//	O(1) lookup. Concepts that participate in relationships but were never
//	described return a record with an empty FSN rather than an error.
//
// Errors:
//
//	ErrConceptNotFound - The identifier is not present in the graph.
func (g *Graph) Concept(id uint64) (Concept, error) {
	n, ok := g.nodes[id]
	if !ok {
		return Concept{}, fmt.Errorf("concept %d: %w", id, ErrConceptNotFound)
	}
	return n.concept, nil
}

// Concepts returns an iterator over all concept records.
//
// Description:
//
//	Iteration order is not specified. The yielded values are copies of the
//	stored records (synonym slices shared, see package doc).
//
// Example:
//
//	g.Concepts()(func(c graph.Concept) bool {
//	    fmt.Println(c)
//	    return true
//	})
func (g *Graph) Concepts() func(yield func(Concept) bool) {
	return func(yield func(Concept) bool) {
		for _, n := range g.nodes {
			if !yield(n.concept) {
				return
			}
		}
	}
}

// Relationships returns an iterator over all resolved relationships.
//
// Description:
//
//	Every stored edge is yielded exactly once with both endpoints resolved.
//	Iteration order is not specified.
func (g *Graph) Relationships() func(yield func(Relationship) bool) {
	return func(yield func(Relationship) bool) {
		for _, n := range g.nodes {
			for _, e := range n.outgoing {
				if !yield(g.resolveEdge(e)) {
					return
				}
			}
		}
	}
}

// AddConcept inserts or overwrites a concept's attribute record.
//
// Description:
//
//	If the identifier is already present (for example as a bare endpoint
//	created by AddRelationship), its attributes are replaced; adjacency is
//	unaffected. The synonym slice is stored as-is and must not be mutated
//	by the caller afterwards.
//
// Errors:
//
//	ErrGraphFrozen - The graph has been frozen.
func (g *Graph) AddConcept(c Concept) error {
	if g.state == GraphStateReadOnly {
		return fmt.Errorf("adding concept %d: %w", c.ID, ErrGraphFrozen)
	}
	n := g.ensureNode(c.ID)
	n.concept = c
	return nil
}

// AddRelationship inserts or overwrites the directed edge source → target.
//
// Description:
//
//	At most one edge is stored per ordered (source, target) pair. Adding a
//	second relationship for the same pair overwrites the first one's type
//	and group attributes (last write wins), matching the release semantics
//	of an edge-attribute map. Endpoints that have not been described yet
//	are created as bare concepts with an empty FSN.
//
// Errors:
//
//	ErrGraphFrozen - The graph has been frozen.
func (g *Graph) AddRelationship(source, target, typeID uint64, typeName string, group int) error {
	if g.state == GraphStateReadOnly {
		return fmt.Errorf("adding relationship %d -> %d: %w", source, target, ErrGraphFrozen)
	}

	src := g.ensureNode(source)
	tgt := g.ensureNode(target)

	for _, e := range src.outgoing {
		if e.to == target {
			e.typeID = typeID
			e.typeName = typeName
			e.group = group
			return nil
		}
	}

	e := &edge{
		from:     source,
		to:       target,
		typeID:   typeID,
		typeName: typeName,
		group:    group,
	}
	src.outgoing = append(src.outgoing, e)
	tgt.incoming = append(tgt.incoming, e)
	g.edgeCount++
	return nil
}

// ensureNode returns the node for id, creating a bare record if absent.
func (g *Graph) ensureNode(id uint64) *node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &node{concept: Concept{ID: id}}
	g.nodes[id] = n
	return n
}

// pruneIsolates removes every node with no incident edges and returns the
// number removed. Called by the builder after all inserts.
func (g *Graph) pruneIsolates() int {
	removed := 0
	for id, n := range g.nodes {
		if len(n.outgoing) == 0 && len(n.incoming) == 0 {
			delete(g.nodes, id)
			removed++
		}
	}
	return removed
}

// resolveEdge materializes a stored edge into a Relationship with both
// endpoint concepts attached.
func (g *Graph) resolveEdge(e *edge) Relationship {
	return Relationship{
		Source: g.conceptOrBare(e.from),
		Target: g.conceptOrBare(e.to),
		TypeID: e.typeID,
		Type:   e.typeName,
		Group:  e.group,
	}
}

// conceptOrBare returns the stored record for id, or a bare record carrying
// just the identifier if the node has been removed. Edges never outlive
// their endpoints, so the fallback only guards internal inconsistency.
func (g *Graph) conceptOrBare(id uint64) Concept {
	if n, ok := g.nodes[id]; ok {
		return n.concept
	}
	return Concept{ID: id}
}
