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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// conceptIDs projects a concept slice onto its identifiers, preserving order.
func conceptIDs(concepts []Concept) []uint64 {
	ids := make([]uint64, 0, len(concepts))
	for _, c := range concepts {
		ids = append(ids, c.ID)
	}
	return ids
}

// chainGraph assembles a frozen is-a chain of the given length by hand:
// id(0) -> id(1) -> ... -> id(n-1). Used for traversals long enough to hit
// the context check interval.
func chainGraph(t *testing.T, n int) (*Graph, func(int) uint64) {
	t.Helper()
	id := func(i int) uint64 { return 900000000000100 + uint64(i) }
	g := NewGraph(WithExpectedConcepts(n))
	for i := 0; i+1 < n; i++ {
		require.NoError(t, g.AddRelationship(id(i), id(i+1), IsATypeID, "Is a", 0))
	}
	g.Freeze()
	return g, id
}

// TestParents_IsAOnly verifies attribute relationships never surface as parents.
func TestParents_IsAOnly(t *testing.T) {
	g := buildTestGraph(t)
	ctx := context.Background()

	parents, err := g.Parents(ctx, miID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{diseaseID}, conceptIDs(parents),
		"finding-site targets must not appear as parents")
	assert.Equal(t, "Disease (disorder)", parents[0].FSN, "parents should be resolved records")
}

// TestParents_HierarchyTop verifies the root has no parents.
func TestParents_HierarchyTop(t *testing.T) {
	g := buildTestGraph(t)

	parents, err := g.Parents(context.Background(), RootConceptID)
	require.NoError(t, err)
	assert.Empty(t, parents)
}

// TestParents_NotFound verifies the missing-concept error.
func TestParents_NotFound(t *testing.T) {
	g := buildTestGraph(t)

	_, err := g.Parents(context.Background(), 999999999)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConceptNotFound)
}

// TestChildren_AdjacencyOrder verifies children resolve in insertion order.
func TestChildren_AdjacencyOrder(t *testing.T) {
	g := buildTestGraph(t)
	ctx := context.Background()

	children, err := g.Children(ctx, RootConceptID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{clinicalFindingID, bodyStructureID}, conceptIDs(children))

	children, err = g.Children(ctx, miID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{acuteMIID}, conceptIDs(children),
		"finding-site sources must not appear as children")
}

// TestChildren_Leaf verifies a leaf concept has no children.
func TestChildren_Leaf(t *testing.T) {
	g := buildTestGraph(t)

	children, err := g.Children(context.Background(), acuteMIID)
	require.NoError(t, err)
	assert.Empty(t, children)
}

// TestParentsChildren_Mutual verifies the two directions agree for every
// concept: each parent lists the concept among its children and vice versa.
func TestParentsChildren_Mutual(t *testing.T) {
	g := buildTestGraph(t)
	ctx := context.Background()

	for c := range g.Concepts() {
		parents, err := g.Parents(ctx, c.ID)
		require.NoError(t, err)
		for _, p := range parents {
			children, err := g.Children(ctx, p.ID)
			require.NoError(t, err)
			assert.Contains(t, conceptIDs(children), c.ID,
				"concept %d missing from children of its parent %d", c.ID, p.ID)
		}

		children, err := g.Children(ctx, c.ID)
		require.NoError(t, err)
		for _, ch := range children {
			parents, err := g.Parents(ctx, ch.ID)
			require.NoError(t, err)
			assert.Contains(t, conceptIDs(parents), c.ID,
				"concept %d missing from parents of its child %d", c.ID, ch.ID)
		}
	}
}

// TestInferredRelationships_GroupOrder verifies groups sort by number even
// when the release rows arrive out of order.
func TestInferredRelationships_GroupOrder(t *testing.T) {
	g := buildTestGraph(t)

	groups, err := g.InferredRelationships(context.Background(), miID)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, 1, groups[0].Group)
	require.Len(t, groups[0].Relationships, 1)
	assert.Equal(t, heartStructureID, groups[0].Relationships[0].Target.ID)
	assert.Equal(t, "Finding site", groups[0].Relationships[0].Type)

	assert.Equal(t, 2, groups[1].Group)
	require.Len(t, groups[1].Relationships, 1)
	assert.Equal(t, rightVentricleID, groups[1].Relationships[0].Target.ID)
}

// TestInferredRelationships_NeverIsA verifies no group ever carries a
// hierarchical relationship, for any concept.
func TestInferredRelationships_NeverIsA(t *testing.T) {
	g := buildTestGraph(t)
	ctx := context.Background()

	for c := range g.Concepts() {
		groups, err := g.InferredRelationships(ctx, c.ID)
		require.NoError(t, err)
		for _, grp := range groups {
			for _, rel := range grp.Relationships {
				assert.NotEqual(t, IsATypeID, rel.TypeID,
					"concept %d leaked an is-a edge into its inferred relationships", c.ID)
			}
		}
	}
}

// TestInferredRelationships_Empty verifies a purely hierarchical concept
// yields no groups.
func TestInferredRelationships_Empty(t *testing.T) {
	g := buildTestGraph(t)

	groups, err := g.InferredRelationships(context.Background(), diseaseID)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

// TestAncestors_Unbounded verifies the full upward closure excludes the root.
func TestAncestors_Unbounded(t *testing.T) {
	g := buildTestGraph(t)

	ancestors, err := g.Ancestors(context.Background(), acuteMIID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{miID, diseaseID, clinicalFindingID}, conceptIDs(ancestors))
}

// TestAncestors_RootNeverIncluded verifies even a direct child of the root
// reports no ancestors.
func TestAncestors_RootNeverIncluded(t *testing.T) {
	g := buildTestGraph(t)

	ancestors, err := g.Ancestors(context.Background(), clinicalFindingID)
	require.NoError(t, err)
	assert.Empty(t, ancestors, "the root must be excluded from ancestor results")
}

// TestAncestors_MaxSteps verifies the step bound and its monotonicity: each
// additional step can only widen the result.
func TestAncestors_MaxSteps(t *testing.T) {
	g := buildTestGraph(t)
	ctx := context.Background()

	one, err := g.Ancestors(ctx, acuteMIID, WithMaxSteps(1))
	require.NoError(t, err)
	assert.Equal(t, []uint64{miID}, conceptIDs(one))

	two, err := g.Ancestors(ctx, acuteMIID, WithMaxSteps(2))
	require.NoError(t, err)
	assert.Equal(t, []uint64{miID, diseaseID}, conceptIDs(two))

	prev := []Concept{}
	for steps := 1; steps <= 5; steps++ {
		cur, err := g.Ancestors(ctx, acuteMIID, WithMaxSteps(steps))
		require.NoError(t, err)
		assert.Subset(t, conceptIDs(cur), conceptIDs(prev),
			"ancestors at %d steps should contain ancestors at %d", steps, steps-1)
		prev = cur
	}
}

// TestAncestors_InvalidMaxSteps verifies explicit non-positive bounds are
// rejected instead of being treated as unbounded.
func TestAncestors_InvalidMaxSteps(t *testing.T) {
	g := buildTestGraph(t)
	ctx := context.Background()

	for _, steps := range []int{0, -1, -99} {
		_, err := g.Ancestors(ctx, acuteMIID, WithMaxSteps(steps))
		require.Error(t, err, "steps=%d", steps)
		assert.ErrorIs(t, err, ErrInvalidMaxSteps)
	}
}

// TestDescendants_Unbounded verifies the full downward closure.
func TestDescendants_Unbounded(t *testing.T) {
	g := buildTestGraph(t)
	ctx := context.Background()

	descendants, err := g.Descendants(ctx, clinicalFindingID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{diseaseID, miID, acuteMIID}, conceptIDs(descendants))

	all, err := g.Descendants(ctx, RootConceptID)
	require.NoError(t, err)
	assert.Len(t, all, 7, "every concept but the root descends from the root")
}

// TestDescendants_MaxSteps verifies the bound and the not-found error.
func TestDescendants_MaxSteps(t *testing.T) {
	g := buildTestGraph(t)
	ctx := context.Background()

	direct, err := g.Descendants(ctx, clinicalFindingID, WithMaxSteps(1))
	require.NoError(t, err)
	assert.Equal(t, []uint64{diseaseID}, conceptIDs(direct))

	_, err = g.Descendants(ctx, clinicalFindingID, WithMaxSteps(0))
	assert.ErrorIs(t, err, ErrInvalidMaxSteps)

	_, err = g.Descendants(ctx, 424242, WithMaxSteps(1))
	assert.ErrorIs(t, err, ErrConceptNotFound)
}

// TestNeighbourhood_Default verifies one step covers parents and children
// but not attribute relationship endpoints.
func TestNeighbourhood_Default(t *testing.T) {
	g := buildTestGraph(t)

	neighbours, err := g.Neighbourhood(context.Background(), miID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{diseaseID, acuteMIID}, conceptIDs(neighbours),
		"one step reaches the parent and the child only")
}

// TestNeighbourhood_ThroughRoot verifies the traversal passes through the
// root to reach another top-level hierarchy while excluding the root itself.
func TestNeighbourhood_ThroughRoot(t *testing.T) {
	g := buildTestGraph(t)

	neighbours, err := g.Neighbourhood(context.Background(), clinicalFindingID, WithMaxSteps(2))
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{diseaseID, miID, bodyStructureID}, conceptIDs(neighbours),
		"two steps cross the root into the body structure hierarchy")
}

// TestNeighbourhood_ExcludesSelfAndRoot verifies the two standing exclusions
// for every concept.
func TestNeighbourhood_ExcludesSelfAndRoot(t *testing.T) {
	g := buildTestGraph(t)
	ctx := context.Background()

	for c := range g.Concepts() {
		neighbours, err := g.Neighbourhood(ctx, c.ID, WithMaxSteps(3))
		require.NoError(t, err)
		ids := conceptIDs(neighbours)
		assert.NotContains(t, ids, c.ID, "neighbourhood of %d contains itself", c.ID)
		assert.NotContains(t, ids, RootConceptID, "neighbourhood of %d contains the root", c.ID)
	}
}

// TestNeighbourhood_InvalidSteps verifies the bound validation.
func TestNeighbourhood_InvalidSteps(t *testing.T) {
	g := buildTestGraph(t)

	_, err := g.Neighbourhood(context.Background(), miID, WithMaxSteps(-1))
	assert.ErrorIs(t, err, ErrInvalidMaxSteps)
}

// TestFindPath_Forward verifies a directed path along the hierarchy.
func TestFindPath_Forward(t *testing.T) {
	g := buildTestGraph(t)

	result, err := g.FindPath(context.Background(), acuteMIID, diseaseID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Length)
	assert.Equal(t, acuteMIID, result.From)
	assert.Equal(t, diseaseID, result.To)
	require.Len(t, result.Path, 2)
	assert.Equal(t, acuteMIID, result.Path[0].Source.ID)
	assert.Equal(t, miID, result.Path[0].Target.ID)
	assert.Equal(t, miID, result.Path[1].Source.ID)
	assert.Equal(t, diseaseID, result.Path[1].Target.ID)
}

// TestFindPath_ReverseFallback verifies the argument order does not matter:
// when no forward path exists the reverse direction is searched and the
// result reports the endpoints of the path actually found.
func TestFindPath_ReverseFallback(t *testing.T) {
	g := buildTestGraph(t)
	ctx := context.Background()

	forward, err := g.FindPath(ctx, acuteMIID, diseaseID)
	require.NoError(t, err)
	reversed, err := g.FindPath(ctx, diseaseID, acuteMIID)
	require.NoError(t, err)

	assert.Equal(t, forward.Length, reversed.Length)
	assert.Equal(t, forward.From, reversed.From)
	assert.Equal(t, forward.To, reversed.To)
	require.Equal(t, len(forward.Path), len(reversed.Path))
	for i := range forward.Path {
		assert.Equal(t, forward.Path[i].Source.ID, reversed.Path[i].Source.ID)
		assert.Equal(t, forward.Path[i].Target.ID, reversed.Path[i].Target.ID)
	}
}

// TestFindPath_MixedTypes verifies paths may cross attribute relationships.
func TestFindPath_MixedTypes(t *testing.T) {
	g := buildTestGraph(t)

	result, err := g.FindPath(context.Background(), miID, bodyStructureID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Length)
	require.Len(t, result.Path, 2)
	assert.Equal(t, "Finding site", result.Path[0].Type)
	assert.Equal(t, heartStructureID, result.Path[0].Target.ID)
	assert.Equal(t, "Is a", result.Path[1].Type)
}

// TestFindPath_SameConcept verifies the trivial path.
func TestFindPath_SameConcept(t *testing.T) {
	g := buildTestGraph(t)

	result, err := g.FindPath(context.Background(), miID, miID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Length)
	assert.Empty(t, result.Path)
	assert.Equal(t, miID, result.From)
	assert.Equal(t, miID, result.To)
}

// TestFindPath_NoPath verifies cousins yield the no-path signal rather than
// an error.
func TestFindPath_NoPath(t *testing.T) {
	g := buildTestGraph(t)

	result, err := g.FindPath(context.Background(), clinicalFindingID, bodyStructureID)
	require.NoError(t, err)
	assert.Equal(t, -1, result.Length)
	assert.Empty(t, result.Path)
}

// TestFindPath_NotFound verifies both argument positions reject unknown ids.
func TestFindPath_NotFound(t *testing.T) {
	g := buildTestGraph(t)
	ctx := context.Background()

	_, err := g.FindPath(ctx, 424242, miID)
	assert.ErrorIs(t, err, ErrConceptNotFound)

	_, err = g.FindPath(ctx, miID, 424242)
	assert.ErrorIs(t, err, ErrConceptNotFound)
}

// TestPathToRoot_Depth verifies the hop count equals the concept's depth and
// every hop is hierarchical.
func TestPathToRoot_Depth(t *testing.T) {
	g := buildTestGraph(t)

	result, err := g.PathToRoot(context.Background(), acuteMIID)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Length)
	assert.Equal(t, acuteMIID, result.From)
	assert.Equal(t, RootConceptID, result.To)
	require.Len(t, result.Path, 4)
	for _, hop := range result.Path {
		assert.Equal(t, IsATypeID, hop.TypeID)
	}
	assert.Equal(t, RootConceptID, result.Path[3].Target.ID)
}

// TestPathToRoot_Root verifies the root reports a zero-length path, distinct
// from the no-path signal.
func TestPathToRoot_Root(t *testing.T) {
	g := buildTestGraph(t)

	result, err := g.PathToRoot(context.Background(), RootConceptID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Length)
	assert.Empty(t, result.Path)
}

// TestPathToRoot_IsAOnly verifies a concept linked to the root solely by an
// attribute relationship has no valid path.
func TestPathToRoot_IsAOnly(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddRelationship(100001, RootConceptID, findingSiteTypeID, "Finding site", 0))
	g.Freeze()

	result, err := g.PathToRoot(context.Background(), 100001)
	require.NoError(t, err)
	assert.Equal(t, -1, result.Length)
	assert.Empty(t, result.Path)
}

// TestPathToRoot_NotFound verifies the missing-concept error.
func TestPathToRoot_NotFound(t *testing.T) {
	g := buildTestGraph(t)

	_, err := g.PathToRoot(context.Background(), 424242)
	assert.ErrorIs(t, err, ErrConceptNotFound)
}

// TestRelationshipTypes_Sorted verifies the distinct sorted type names,
// hierarchical type included.
func TestRelationshipTypes_Sorted(t *testing.T) {
	g := buildTestGraph(t)

	assert.Equal(t, []string{"Finding site", "Is a"}, g.RelationshipTypes())
}

// TestFullConcept verifies the assembled local view.
func TestFullConcept(t *testing.T) {
	g := buildTestGraph(t)

	view, err := g.FullConcept(context.Background(), miID)
	require.NoError(t, err)
	assert.Equal(t, "Myocardial infarction (disorder)", view.Concept.FSN)
	assert.Equal(t, []uint64{diseaseID}, conceptIDs(view.Parents))
	assert.Equal(t, []uint64{acuteMIID}, conceptIDs(view.Children))
	assert.Len(t, view.InferredRelationships, 2)
}

// TestFullConcept_NotFound verifies the missing-concept error.
func TestFullConcept_NotFound(t *testing.T) {
	g := buildTestGraph(t)

	_, err := g.FullConcept(context.Background(), 424242)
	assert.ErrorIs(t, err, ErrConceptNotFound)
}

// TestTraversals_ContextCancelled verifies long traversals notice a
// cancelled context.
func TestTraversals_ContextCancelled(t *testing.T) {
	g, id := chainGraph(t, 300)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Ancestors(ctx, id(0))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = g.Descendants(ctx, id(299))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = g.FindPath(ctx, id(0), id(299))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestTraversals_LongChain verifies unbounded traversals cover deep
// hierarchies and path lengths match depth.
func TestTraversals_LongChain(t *testing.T) {
	g, id := chainGraph(t, 300)
	ctx := context.Background()

	ancestors, err := g.Ancestors(ctx, id(0))
	require.NoError(t, err)
	assert.Len(t, ancestors, 299)

	result, err := g.PathToRoot(ctx, id(0))
	require.NoError(t, err)
	assert.Equal(t, -1, result.Length, "the chain top is not the SNOMED root")

	path, err := g.FindPath(ctx, id(0), id(299))
	require.NoError(t, err)
	assert.Equal(t, 299, path.Length)
}

// TestQueries_ConcurrentReads verifies a frozen graph serves queries from
// multiple goroutines.
func TestQueries_ConcurrentReads(t *testing.T) {
	g := buildTestGraph(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := g.Ancestors(ctx, acuteMIID); err != nil {
					t.Errorf("Ancestors: %v", err)
					return
				}
				if _, err := g.Descendants(ctx, RootConceptID); err != nil {
					t.Errorf("Descendants: %v", err)
					return
				}
				if _, err := g.FindPath(ctx, acuteMIID, RootConceptID); err != nil {
					t.Errorf("FindPath: %v", err)
					return
				}
				if _, err := g.FullConcept(ctx, miID); err != nil {
					t.Errorf("FullConcept: %v", err)
					return
				}
				g.RelationshipTypes()
			}
		}()
	}
	wg.Wait()
}

// TestValidate_Consistency verifies the post-build invariants and the
// not-frozen rejection.
func TestValidate_Consistency(t *testing.T) {
	t.Run("frozen fixture is valid", func(t *testing.T) {
		g := buildTestGraph(t)
		assert.NoError(t, g.Validate())
	})

	t.Run("building graph is rejected", func(t *testing.T) {
		g := NewGraph()
		require.NoError(t, g.AddRelationship(1, 2, IsATypeID, "Is a", 0))
		err := g.Validate()
		assert.ErrorIs(t, err, ErrNotFrozen)
	})

	t.Run("dangling target is reported", func(t *testing.T) {
		g := NewGraph()
		require.NoError(t, g.AddRelationship(1, 2, IsATypeID, "Is a", 0))
		g.Freeze()
		delete(g.nodes, 2)
		err := g.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not in graph")
	})
}

// TestPathResult_String verifies the three rendering cases.
func TestPathResult_String(t *testing.T) {
	g := buildTestGraph(t)
	ctx := context.Background()

	noPath, err := g.FindPath(ctx, clinicalFindingID, bodyStructureID)
	require.NoError(t, err)
	assert.Equal(t, "No path found.", noPath.String())

	trivial, err := g.FindPath(ctx, miID, miID)
	require.NoError(t, err)
	assert.Equal(t, "[22298006]", trivial.String())

	path, err := g.FindPath(ctx, acuteMIID, miID)
	require.NoError(t, err)
	assert.Contains(t, path.String(), "---[Is a]--->")
	assert.Contains(t, path.String(), "Acute myocardial infarction (disorder)")
}

// TestQueryOptions verifies defaults and option application.
func TestQueryOptions(t *testing.T) {
	defaults := DefaultQueryOptions()
	assert.Zero(t, defaults.MaxSteps)
	assert.False(t, defaults.maxStepsSet)

	applied := applyQueryOptions([]QueryOption{WithMaxSteps(3)})
	assert.Equal(t, 3, applied.MaxSteps)
	assert.True(t, applied.maxStepsSet)
}
