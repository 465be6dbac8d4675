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
	"context"
	"fmt"
	"sort"
	"time"
)

// contextCheckInterval is how many visited nodes a traversal processes
// between context cancellation checks.
const contextCheckInterval = 100

// traversalDirection selects which hierarchy adjacency a closure follows.
type traversalDirection int

const (
	// traverseUp follows outgoing "is a" edges, toward ancestors.
	traverseUp traversalDirection = iota

	// traverseDown follows incoming "is a" edges, toward descendants.
	traverseDown

	// traverseBoth follows "is a" edges in either direction.
	traverseBoth
)

// QueryOptions configures hierarchy traversal queries.
type QueryOptions struct {
	// MaxSteps bounds how many hierarchy levels a traversal climbs or
	// descends. 1 means immediate parents or children only.
	MaxSteps int

	maxStepsSet bool
}

// QueryOption is a functional option for traversal queries.
type QueryOption func(*QueryOptions)

// DefaultQueryOptions returns options with no explicit step bound. Each
// operation substitutes its own default: unbounded for Ancestors and
// Descendants, one step for Neighbourhood.
func DefaultQueryOptions() QueryOptions {
	return QueryOptions{}
}

// WithMaxSteps bounds a traversal to the given number of hierarchy levels.
//
// Description:
//
//	A bound of 1 keeps Ancestors at immediate parents and Descendants at
//	immediate children. Values <= 0 are rejected by the query with
//	ErrInvalidMaxSteps rather than clamped, so a caller bug surfaces
//	instead of silently returning an unbounded result.
func WithMaxSteps(steps int) QueryOption {
	return func(o *QueryOptions) {
		o.MaxSteps = steps
		o.maxStepsSet = true
	}
}

// applyQueryOptions applies the given options to the defaults.
func applyQueryOptions(opts []QueryOption) QueryOptions {
	options := DefaultQueryOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// resolveMaxSteps validates an explicit step bound or substitutes the
// operation fallback. A resolved value of 0 means unbounded.
func resolveMaxSteps(options QueryOptions, fallback int) (int, error) {
	if !options.maxStepsSet {
		return fallback, nil
	}
	if options.MaxSteps <= 0 {
		return 0, fmt.Errorf("max steps %d: %w", options.MaxSteps, ErrInvalidMaxSteps)
	}
	return options.MaxSteps, nil
}

// PathResult describes the outcome of a path query between two concepts.
type PathResult struct {
	// From is the first concept on the returned path. Path queries that
	// fall back to the reverse direction report the endpoints of the path
	// actually found, so From may be the second query argument.
	From uint64

	// To is the last concept on the returned path.
	To uint64

	// Path holds the relationships along the path in order. Empty when the
	// endpoints coincide or when no path exists.
	Path []Relationship

	// Length is the number of hops on the path. 0 means the endpoints are
	// the same concept. -1 means no path exists; the negative value keeps
	// "no path" distinct from a legitimate zero-length path.
	Length int
}

// String renders the path in the "[src] ---[type]---> [tgt]" chain form, or
// "No path found." when Length is -1.
func (pr *PathResult) String() string {
	if pr.Length < 0 {
		return "No path found."
	}
	if len(pr.Path) == 0 {
		return fmt.Sprintf("[%d]", pr.From)
	}
	s := fmt.Sprintf("[%s]", pr.Path[0].Source)
	for _, r := range pr.Path {
		s += fmt.Sprintf(" ---[%s]---> [%s]", r.Type, r.Target)
	}
	return s
}

// Parents returns the concepts that directly subsume the given concept.
//
// Description:
//
//	Filters the concept's outgoing edges to the "is a" type and resolves
//	the target of each. Runs in O(outgoing degree). Results follow
//	adjacency (insertion) order.
//
// Inputs:
//
//	ctx - Context for tracing
//	sctid - Concept to look up
//
// Outputs:
//
//	[]Concept - Direct parents (empty for a hierarchy top)
//	error - ErrConceptNotFound if sctid is not in the graph
//
// Example:
//
//	parents, err := g.Parents(ctx, 22298006)
func (g *Graph) Parents(ctx context.Context, sctid uint64) ([]Concept, error) {
	ctx, span := startQuerySpan(ctx, "Parents", sctid)
	defer span.End()
	start := time.Now()

	n, ok := g.nodes[sctid]
	if !ok {
		return nil, fmt.Errorf("concept %d: %w", sctid, ErrConceptNotFound)
	}

	parents := make([]Concept, 0, len(n.outgoing))
	for _, e := range n.outgoing {
		if e.typeID != IsATypeID {
			continue
		}
		parents = append(parents, g.conceptOrBare(e.to))
	}

	recordQueryMetrics(ctx, "Parents", time.Since(start), len(parents))
	return parents, nil
}

// Children returns the concepts directly subsumed by the given concept.
//
// Description:
//
//	Filters the concept's incoming edges to the "is a" type and resolves
//	the source of each. Runs in O(incoming degree). Results follow
//	adjacency (insertion) order.
//
// Inputs:
//
//	ctx - Context for tracing
//	sctid - Concept to look up
//
// Outputs:
//
//	[]Concept - Direct children (empty for a leaf)
//	error - ErrConceptNotFound if sctid is not in the graph
func (g *Graph) Children(ctx context.Context, sctid uint64) ([]Concept, error) {
	ctx, span := startQuerySpan(ctx, "Children", sctid)
	defer span.End()
	start := time.Now()

	n, ok := g.nodes[sctid]
	if !ok {
		return nil, fmt.Errorf("concept %d: %w", sctid, ErrConceptNotFound)
	}

	children := make([]Concept, 0, len(n.incoming))
	for _, e := range n.incoming {
		if e.typeID != IsATypeID {
			continue
		}
		children = append(children, g.conceptOrBare(e.from))
	}

	recordQueryMetrics(ctx, "Children", time.Since(start), len(children))
	return children, nil
}

// InferredRelationships returns the concept's non-hierarchical outgoing
// relationships, grouped by relationship group number.
//
// Description:
//
//	Collects every outgoing edge whose type is not "is a", orders the
//	collection by ascending group number while preserving encounter order
//	within a group, and wraps each run of equal group numbers in a
//	RelationshipGroup.
//
// Inputs:
//
//	ctx - Context for tracing
//	sctid - Concept to look up
//
// Outputs:
//
//	[]RelationshipGroup - Groups in ascending group order (empty if the
//	                      concept has only hierarchical relationships)
//	error - ErrConceptNotFound if sctid is not in the graph
func (g *Graph) InferredRelationships(ctx context.Context, sctid uint64) ([]RelationshipGroup, error) {
	ctx, span := startQuerySpan(ctx, "InferredRelationships", sctid)
	defer span.End()
	start := time.Now()

	n, ok := g.nodes[sctid]
	if !ok {
		return nil, fmt.Errorf("concept %d: %w", sctid, ErrConceptNotFound)
	}

	rels := make([]Relationship, 0, len(n.outgoing))
	for _, e := range n.outgoing {
		if e.typeID == IsATypeID {
			continue
		}
		rels = append(rels, g.resolveEdge(e))
	}
	sort.SliceStable(rels, func(i, j int) bool {
		return rels[i].Group < rels[j].Group
	})

	groups := make([]RelationshipGroup, 0)
	for _, rel := range rels {
		if len(groups) == 0 || groups[len(groups)-1].Group != rel.Group {
			groups = append(groups, RelationshipGroup{Group: rel.Group})
		}
		last := &groups[len(groups)-1]
		last.Relationships = append(last.Relationships, rel)
	}

	recordQueryMetrics(ctx, "InferredRelationships", time.Since(start), len(rels))
	return groups, nil
}

// Ancestors returns every concept reachable by climbing "is a" edges.
//
// Description:
//
//	Breadth-first closure over outgoing "is a" edges. The root concept is
//	traversed through but excluded from the result, so the top of a
//	hierarchy reports its semantic ancestors without the terminology root.
//	The query concept itself is never included.
//
// Inputs:
//
//	ctx - Context for cancellation (checked every 100 visited nodes)
//	sctid - Concept to start from
//	opts - Optional WithMaxSteps bound (default: unbounded)
//
// Outputs:
//
//	[]Concept - Ancestors in breadth-first visit order
//	error - ErrConceptNotFound, ErrInvalidMaxSteps, or a context error
func (g *Graph) Ancestors(ctx context.Context, sctid uint64, opts ...QueryOption) ([]Concept, error) {
	ctx, span := startQuerySpan(ctx, "Ancestors", sctid)
	defer span.End()
	start := time.Now()

	steps, err := resolveMaxSteps(applyQueryOptions(opts), 0)
	if err != nil {
		return nil, err
	}
	if _, ok := g.nodes[sctid]; !ok {
		return nil, fmt.Errorf("concept %d: %w", sctid, ErrConceptNotFound)
	}

	closure, err := g.hierarchyClosure(ctx, sctid, steps, traverseUp)
	if err != nil {
		return nil, err
	}

	ancestors := make([]Concept, 0, len(closure))
	for _, c := range closure {
		if c.ID == RootConceptID {
			continue
		}
		ancestors = append(ancestors, c)
	}

	recordQueryMetrics(ctx, "Ancestors", time.Since(start), len(ancestors))
	return ancestors, nil
}

// Descendants returns every concept reachable by descending "is a" edges.
//
// Description:
//
//	Breadth-first closure over incoming "is a" edges. Unlike Ancestors no
//	concept is filtered from the result; the query concept itself is never
//	included.
//
// Inputs:
//
//	ctx - Context for cancellation (checked every 100 visited nodes)
//	sctid - Concept to start from
//	opts - Optional WithMaxSteps bound (default: unbounded)
//
// Outputs:
//
//	[]Concept - Descendants in breadth-first visit order
//	error - ErrConceptNotFound, ErrInvalidMaxSteps, or a context error
func (g *Graph) Descendants(ctx context.Context, sctid uint64, opts ...QueryOption) ([]Concept, error) {
	ctx, span := startQuerySpan(ctx, "Descendants", sctid)
	defer span.End()
	start := time.Now()

	steps, err := resolveMaxSteps(applyQueryOptions(opts), 0)
	if err != nil {
		return nil, err
	}
	if _, ok := g.nodes[sctid]; !ok {
		return nil, fmt.Errorf("concept %d: %w", sctid, ErrConceptNotFound)
	}

	descendants, err := g.hierarchyClosure(ctx, sctid, steps, traverseDown)
	if err != nil {
		return nil, err
	}

	recordQueryMetrics(ctx, "Descendants", time.Since(start), len(descendants))
	return descendants, nil
}

// Neighbourhood returns the concepts within a number of hierarchy hops.
//
// Description:
//
//	Breadth-first closure following "is a" edges in either direction, so
//	the result covers ancestors, descendants and cousins up to the bound.
//	The traversal passes through the root concept (two top-level
//	hierarchies are two hops apart) but the root and the query concept are
//	excluded from the result.
//
// Inputs:
//
//	ctx - Context for cancellation (checked every 100 visited nodes)
//	sctid - Concept to start from
//	opts - Optional WithMaxSteps bound (default: 1, immediate neighbours)
//
// Outputs:
//
//	[]Concept - Neighbours in breadth-first visit order
//	error - ErrConceptNotFound, ErrInvalidMaxSteps, or a context error
func (g *Graph) Neighbourhood(ctx context.Context, sctid uint64, opts ...QueryOption) ([]Concept, error) {
	ctx, span := startQuerySpan(ctx, "Neighbourhood", sctid)
	defer span.End()
	start := time.Now()

	steps, err := resolveMaxSteps(applyQueryOptions(opts), 1)
	if err != nil {
		return nil, err
	}
	if _, ok := g.nodes[sctid]; !ok {
		return nil, fmt.Errorf("concept %d: %w", sctid, ErrConceptNotFound)
	}

	closure, err := g.hierarchyClosure(ctx, sctid, steps, traverseBoth)
	if err != nil {
		return nil, err
	}

	neighbours := make([]Concept, 0, len(closure))
	for _, c := range closure {
		if c.ID == RootConceptID {
			continue
		}
		neighbours = append(neighbours, c)
	}

	recordQueryMetrics(ctx, "Neighbourhood", time.Since(start), len(neighbours))
	return neighbours, nil
}

// hierarchyClosure walks "is a" edges breadth-first from startID and returns
// the visited concepts in visit order, excluding startID itself. A maxSteps
// of 0 leaves the walk unbounded.
func (g *Graph) hierarchyClosure(ctx context.Context, startID uint64, maxSteps int, dir traversalDirection) ([]Concept, error) {
	result := make([]Concept, 0)
	visited := map[uint64]bool{startID: true}

	type queueItem struct {
		id    uint64
		depth int
	}
	queue := []queueItem{{startID, 0}}
	checkCounter := 0

	for len(queue) > 0 {
		checkCounter++
		if checkCounter%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("traversal from %d: %w", startID, err)
			}
		}

		item := queue[0]
		queue = queue[1:]

		if item.id != startID {
			result = append(result, g.conceptOrBare(item.id))
		}

		if maxSteps > 0 && item.depth >= maxSteps {
			continue
		}

		n := g.nodes[item.id]
		if dir == traverseUp || dir == traverseBoth {
			for _, e := range n.outgoing {
				if e.typeID != IsATypeID || visited[e.to] {
					continue
				}
				visited[e.to] = true
				queue = append(queue, queueItem{e.to, item.depth + 1})
			}
		}
		if dir == traverseDown || dir == traverseBoth {
			for _, e := range n.incoming {
				if e.typeID != IsATypeID || visited[e.from] {
					continue
				}
				visited[e.from] = true
				queue = append(queue, queueItem{e.from, item.depth + 1})
			}
		}
	}

	return result, nil
}

// FindPath returns a shortest directed path between two concepts.
//
// Description:
//
//	Considers all relationship types. Searches sctid1 to sctid2 first and
//	falls back to sctid2 to sctid1, so a path is found whenever one concept
//	is a (transitive) source of the other; "cousins" with no directed path
//	in either direction yield Length -1. The result's From and To report
//	the endpoints of the path actually found, which may be the reverse of
//	the argument order.
//
// Inputs:
//
//	ctx - Context for cancellation (checked every 100 visited nodes)
//	sctid1 - First concept
//	sctid2 - Second concept
//
// Outputs:
//
//	*PathResult - Path details; Length -1 when no path exists in either
//	              direction, 0 when sctid1 == sctid2
//	error - ErrConceptNotFound if either concept is not in the graph,
//	        or a context error
func (g *Graph) FindPath(ctx context.Context, sctid1, sctid2 uint64) (*PathResult, error) {
	ctx, span := startQuerySpan(ctx, "FindPath", sctid1)
	defer span.End()
	start := time.Now()

	if _, ok := g.nodes[sctid1]; !ok {
		return nil, fmt.Errorf("concept %d: %w", sctid1, ErrConceptNotFound)
	}
	if _, ok := g.nodes[sctid2]; !ok {
		return nil, fmt.Errorf("concept %d: %w", sctid2, ErrConceptNotFound)
	}

	result := &PathResult{
		From:   sctid1,
		To:     sctid2,
		Path:   []Relationship{},
		Length: -1,
	}

	nodes, err := g.bfsPath(ctx, sctid1, sctid2, false)
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes, err = g.bfsPath(ctx, sctid2, sctid1, false)
		if err != nil {
			return nil, err
		}
	}
	if nodes == nil {
		recordQueryMetrics(ctx, "FindPath", time.Since(start), 0)
		return result, nil
	}

	result.From = nodes[0]
	result.To = nodes[len(nodes)-1]
	result.Path = g.resolveNodePath(nodes)
	result.Length = len(result.Path)

	recordQueryMetrics(ctx, "FindPath", time.Since(start), len(result.Path))
	return result, nil
}

// PathToRoot returns a shortest "is a" path from the concept to the root.
//
// Description:
//
//	Only hierarchical edges participate; a concept connected to the root
//	solely through attribute relationships has no valid path. The hop
//	count of the result is the concept's depth in the hierarchy. Querying
//	the root itself yields a zero-length path, while an unreachable root
//	yields Length -1; the two cases stay distinguishable.
//
// Inputs:
//
//	ctx - Context for cancellation (checked every 100 visited nodes)
//	sctid - Concept to start from
//
// Outputs:
//
//	*PathResult - Path details with From = sctid and To = the root
//	error - ErrConceptNotFound if sctid is not in the graph, or a
//	        context error
func (g *Graph) PathToRoot(ctx context.Context, sctid uint64) (*PathResult, error) {
	ctx, span := startQuerySpan(ctx, "PathToRoot", sctid)
	defer span.End()
	start := time.Now()

	if _, ok := g.nodes[sctid]; !ok {
		return nil, fmt.Errorf("concept %d: %w", sctid, ErrConceptNotFound)
	}

	result := &PathResult{
		From:   sctid,
		To:     RootConceptID,
		Path:   []Relationship{},
		Length: -1,
	}

	nodes, err := g.bfsPath(ctx, sctid, RootConceptID, true)
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		recordQueryMetrics(ctx, "PathToRoot", time.Since(start), 0)
		return result, nil
	}

	result.Path = g.resolveNodePath(nodes)
	result.Length = len(result.Path)

	recordQueryMetrics(ctx, "PathToRoot", time.Since(start), len(result.Path))
	return result, nil
}

// bfsPath returns the node sequence of a shortest directed path, or nil when
// "to" is unreachable from "from". With isAOnly set only "is a" edges are
// followed. Ties between equal-length paths resolve by adjacency order.
func (g *Graph) bfsPath(ctx context.Context, from, to uint64, isAOnly bool) ([]uint64, error) {
	if from == to {
		return []uint64{from}, nil
	}

	visited := map[uint64]bool{from: true}
	parent := make(map[uint64]uint64)
	queue := []uint64{from}
	checkCounter := 0

	for len(queue) > 0 {
		checkCounter++
		if checkCounter%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("path search %d -> %d: %w", from, to, err)
			}
		}

		current := queue[0]
		queue = queue[1:]

		for _, e := range g.nodes[current].outgoing {
			if isAOnly && e.typeID != IsATypeID {
				continue
			}
			if visited[e.to] {
				continue
			}
			visited[e.to] = true
			parent[e.to] = current

			if e.to == to {
				nodes := []uint64{to}
				for p := current; ; p = parent[p] {
					nodes = append([]uint64{p}, nodes...)
					if p == from {
						break
					}
				}
				return nodes, nil
			}

			queue = append(queue, e.to)
		}
	}

	return nil, nil
}

// resolveNodePath converts a node sequence into the relationships linking
// each consecutive pair. The graph stores at most one edge per ordered pair,
// so the lookup is unambiguous.
func (g *Graph) resolveNodePath(nodes []uint64) []Relationship {
	path := make([]Relationship, 0, len(nodes))
	for i := 0; i+1 < len(nodes); i++ {
		for _, e := range g.nodes[nodes[i]].outgoing {
			if e.to == nodes[i+1] {
				path = append(path, g.resolveEdge(e))
				break
			}
		}
	}
	return path
}

// RelationshipTypes returns the sorted distinct names of every relationship
// type present in the graph, the subsumption type included.
func (g *Graph) RelationshipTypes() []string {
	seen := make(map[string]bool)
	for _, n := range g.nodes {
		for _, e := range n.outgoing {
			seen[e.typeName] = true
		}
	}

	types := make([]string, 0, len(seen))
	for name := range seen {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// FullConcept returns the complete local view of a concept.
//
// Description:
//
//	Bundles the concept's own record with its direct parents, direct
//	children and grouped inferred relationships. Equivalent to calling
//	Concept, Parents, Children and InferredRelationships in turn.
//
// Inputs:
//
//	ctx - Context for tracing
//	sctid - Concept to look up
//
// Outputs:
//
//	*ConceptView - The assembled view
//	error - ErrConceptNotFound if sctid is not in the graph
func (g *Graph) FullConcept(ctx context.Context, sctid uint64) (*ConceptView, error) {
	ctx, span := startQuerySpan(ctx, "FullConcept", sctid)
	defer span.End()
	start := time.Now()

	c, err := g.Concept(sctid)
	if err != nil {
		return nil, err
	}
	parents, err := g.Parents(ctx, sctid)
	if err != nil {
		return nil, err
	}
	children, err := g.Children(ctx, sctid)
	if err != nil {
		return nil, err
	}
	groups, err := g.InferredRelationships(ctx, sctid)
	if err != nil {
		return nil, err
	}

	view := &ConceptView{
		Concept:               c,
		Parents:               parents,
		Children:              children,
		InferredRelationships: groups,
	}

	recordQueryMetrics(ctx, "FullConcept", time.Since(start), 1)
	return view, nil
}

// Validate checks that the graph is in a consistent state for querying.
//
// Description:
//
//	Verifies the graph has been frozen and that the two adjacency
//	directions agree: every outgoing edge appears in its target's incoming
//	list, every incoming edge references a present source, and the indexed
//	edge total matches the stored count. Intended to run once after a
//	build or a load, before serving queries.
//
// Outputs:
//
//	error - Non-nil if the graph is still building or the adjacency lists
//	        are inconsistent
//
// Example:
//
//	if err := g.Validate(); err != nil {
//	    return fmt.Errorf("graph corrupt: %w", err)
//	}
func (g *Graph) Validate() error {
	if g.state != GraphStateReadOnly {
		return fmt.Errorf("graph state %s: %w", g.state, ErrNotFrozen)
	}

	indexed := 0
	for id, n := range g.nodes {
		for _, e := range n.outgoing {
			if e.from != id {
				return fmt.Errorf("edge %d -> %d indexed under node %d", e.from, e.to, id)
			}
			tgt, ok := g.nodes[e.to]
			if !ok {
				return fmt.Errorf("edge %d -> %d: target not in graph", e.from, e.to)
			}
			found := false
			for _, in := range tgt.incoming {
				if in == e {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("edge %d -> %d missing from target's incoming list", e.from, e.to)
			}
			indexed++
		}
		for _, e := range n.incoming {
			if e.to != id {
				return fmt.Errorf("edge %d -> %d indexed under node %d", e.from, e.to, id)
			}
			if _, ok := g.nodes[e.from]; !ok {
				return fmt.Errorf("edge %d -> %d: source not in graph", e.from, e.to)
			}
		}
	}
	if indexed != g.edgeCount {
		return fmt.Errorf("edge count mismatch: %d stored, %d indexed", g.edgeCount, indexed)
	}
	return nil
}
