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
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Builder pacing constants.
const (
	// buildCheckInterval is how many rows are processed between context
	// cancellation checks inside a build phase.
	buildCheckInterval = 10_000

	// progressReportInterval is how many rows are processed between
	// progress callback invocations inside a build phase.
	progressReportInterval = 100_000
)

// RelationshipRow is one relationship record from a release, already parsed
// out of its tabular form. Field names follow the release columns.
type RelationshipRow struct {
	// SourceID is the SCTID of the concept the relationship points away from.
	SourceID uint64

	// DestinationID is the SCTID of the concept the relationship points at.
	DestinationID uint64

	// TypeID is the SCTID of the concept defining the relationship type.
	TypeID uint64

	// Group is the relationship group number (0 = ungrouped).
	Group int

	// Active reports whether the row is active in the release. Inactive
	// rows are skipped by the builder.
	Active bool
}

// DescriptionRow is one description record from a release. A row whose
// TypeID equals FSNTypeID carries the concept's fully specified name; all
// other rows carry synonyms.
type DescriptionRow struct {
	// ConceptID is the SCTID of the concept being described.
	ConceptID uint64

	// TypeID is the description type identifier.
	TypeID uint64

	// Term is the description text.
	Term string

	// Active reports whether the row is active in the release. Inactive
	// rows are skipped by the builder.
	Active bool
}

// ProgressPhase indicates which phase of building is in progress.
type ProgressPhase int

const (
	// ProgressPhaseRelationships indicates relationship rows are being
	// inserted as edges.
	ProgressPhaseRelationships ProgressPhase = iota

	// ProgressPhaseConcepts indicates concept attributes are being set from
	// description rows.
	ProgressPhaseConcepts

	// ProgressPhaseFinalizing indicates isolates are being pruned and the
	// graph is being frozen.
	ProgressPhaseFinalizing
)

// String returns the string representation of the ProgressPhase.
func (p ProgressPhase) String() string {
	switch p {
	case ProgressPhaseRelationships:
		return "relationships"
	case ProgressPhaseConcepts:
		return "concepts"
	case ProgressPhaseFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// BuildProgress contains progress information during a build.
type BuildProgress struct {
	// Phase is the current build phase.
	Phase ProgressPhase

	// RowsTotal is the total number of rows in the current phase.
	RowsTotal int

	// RowsProcessed is the number of rows processed so far in the phase.
	RowsProcessed int
}

// ProgressFunc is a callback function for build progress updates.
type ProgressFunc func(progress BuildProgress)

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// Logger receives the build summary and recoverable warnings.
	// Default: slog.Default()
	Logger *slog.Logger

	// ProgressCallback is called periodically with build progress.
	// May be nil.
	ProgressCallback ProgressFunc
}

// DefaultBuilderOptions returns sensible defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		Logger: slog.Default(),
	}
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithLogger sets the logger used for the build summary and warnings.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(o *BuilderOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithProgressCallback sets the progress callback function.
func WithProgressCallback(fn ProgressFunc) BuilderOption {
	return func(o *BuilderOptions) {
		o.ProgressCallback = fn
	}
}

// Builder constructs SNOMED graphs from release record sets.
//
// The builder is stateless and can be reused across multiple builds.
// Each Build() call creates a new graph.
//
// Thread Safety:
//
//	Builder is safe for concurrent use. Each Build() call operates
//	independently with its own internal state.
type Builder struct {
	options BuilderOptions
}

// NewBuilder creates a new Builder with the given options.
//
// Example:
//
//	builder := NewBuilder(
//	    WithLogger(logger),
//	    WithProgressCallback(func(p graph.BuildProgress) { ... }),
//	)
func NewBuilder(opts ...BuilderOption) *Builder {
	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	return &Builder{
		options: options,
	}
}

// conceptRows accumulates one concept's description terms in input order.
type conceptRows struct {
	fsn      string
	fsnFound bool
	synonyms []string
}

// buildState holds mutable state during a single build operation.
type buildState struct {
	graph     *Graph
	result    *BuildResult
	described map[uint64]*conceptRows
	order     []uint64 // described concept IDs in first-seen order
	typeNames map[uint64]string
	startTime time.Time
}

// Build constructs a graph from the given release records.
//
// Description:
//
//	Filters both record sets to active rows, resolves relationship-type
//	display names, inserts relationships as directed edges (last write wins
//	per ordered source/target pair), sets concept attributes from the
//	description rows, prunes isolated concepts and freezes the graph.
//	Construction is all-or-nothing: an error produces no graph.
//
// Inputs:
//
//	ctx - Context for cancellation. Build checks context periodically.
//	relationships - Relationship rows of the release.
//	descriptions - Description rows of the release.
//
// Outputs:
//
//	*BuildResult - The frozen graph plus warnings and statistics. On
//	cancellation the result carries Incomplete=true, partial statistics
//	and a nil Graph.
//	error - ErrUnresolvedRelationshipType (fatal) or ErrBuildCancelled.
//
// Errors:
//
//	ErrUnresolvedRelationshipType - A relationship row's type identifier
//	has no active FSN description row to take a display name from.
//	ErrBuildCancelled - The context was cancelled mid-build.
func (b *Builder) Build(ctx context.Context, relationships []RelationshipRow, descriptions []DescriptionRow) (*BuildResult, error) {
	ctx, span := startBuildSpan(ctx, len(relationships), len(descriptions))
	defer span.End()

	state := &buildState{
		graph:     NewGraph(WithExpectedConcepts(len(descriptions) / 4)),
		result:    &BuildResult{},
		described: make(map[uint64]*conceptRows),
		typeNames: make(map[uint64]string),
		startTime: time.Now(),
	}
	state.result.Stats.RelationshipRows = len(relationships)
	state.result.Stats.DescriptionRows = len(descriptions)

	b.collectDescriptions(state, descriptions)

	if err := b.resolveTypeNames(state, relationships); err != nil {
		b.finishStats(state)
		recordBuildMetrics(ctx, time.Since(state.startTime), 0, 0, false)
		return nil, err
	}

	if err := b.relationshipPhase(ctx, state, relationships); err != nil {
		return b.cancelled(ctx, span, state, err)
	}

	if err := b.conceptPhase(ctx, state); err != nil {
		return b.cancelled(ctx, span, state, err)
	}

	b.reportProgress(state, ProgressPhaseFinalizing, 1, 0)
	state.result.Stats.IsolatesRemoved = state.graph.pruneIsolates()
	state.graph.Freeze()
	state.result.Graph = state.graph
	state.result.Stats.ConceptCount = state.graph.Len()
	state.result.Stats.EdgeCount = state.graph.EdgeCount()
	b.finishStats(state)
	b.reportProgress(state, ProgressPhaseFinalizing, 1, 1)

	setBuildSpanResult(span, state.graph.Len(), state.graph.EdgeCount(), false)
	recordBuildMetrics(ctx, time.Since(state.startTime), state.graph.Len(), state.graph.EdgeCount(), true)

	b.options.Logger.Info("SNOMED graph built",
		slog.Int("concepts", state.graph.Len()),
		slog.Int("relationships", state.graph.EdgeCount()),
		slog.Int("isolates_removed", state.result.Stats.IsolatesRemoved),
		slog.Int("warnings", len(state.result.Warnings)),
		slog.Int64("duration_ms", state.result.Stats.DurationMilli),
	)

	return state.result, nil
}

// collectDescriptions folds the active description rows into per-concept
// accumulators, preserving input order within each concept.
func (b *Builder) collectDescriptions(state *buildState, descriptions []DescriptionRow) {
	for _, row := range descriptions {
		if !row.Active {
			continue
		}
		state.result.Stats.ActiveDescriptionRows++

		acc, ok := state.described[row.ConceptID]
		if !ok {
			acc = &conceptRows{}
			state.described[row.ConceptID] = acc
			state.order = append(state.order, row.ConceptID)
		}

		if row.TypeID == FSNTypeID {
			if !acc.fsnFound {
				acc.fsn = row.Term
				acc.fsnFound = true
			}
			continue
		}
		acc.synonyms = append(acc.synonyms, row.Term)
	}
}

// resolveTypeNames builds the transient type-identifier → display-name table
// for every distinct type appearing in an active relationship row. A type
// without an active FSN description row is fatal.
func (b *Builder) resolveTypeNames(state *buildState, relationships []RelationshipRow) error {
	var missing []uint64
	for _, row := range relationships {
		if !row.Active {
			continue
		}
		if _, ok := state.typeNames[row.TypeID]; ok {
			continue
		}
		acc, ok := state.described[row.TypeID]
		if !ok || !acc.fsnFound {
			state.typeNames[row.TypeID] = "" // mark seen; reported below
			missing = append(missing, row.TypeID)
			continue
		}
		state.typeNames[row.TypeID] = acc.fsn
	}

	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return fmt.Errorf("relationship types %v: %w", missing, ErrUnresolvedRelationshipType)
	}

	state.result.Stats.TypesResolved = len(state.typeNames)
	return nil
}

// relationshipPhase inserts every active relationship row as an edge.
func (b *Builder) relationshipPhase(ctx context.Context, state *buildState, relationships []RelationshipRow) error {
	for i, row := range relationships {
		if i%buildCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("after %d relationship rows: %w", i, ErrBuildCancelled)
			}
		}
		if i%progressReportInterval == 0 {
			b.reportProgress(state, ProgressPhaseRelationships, len(relationships), i)
		}

		if !row.Active {
			continue
		}
		state.result.Stats.ActiveRelationshipRows++

		// The graph is in the building state and the type table is
		// complete, so this cannot fail.
		_ = state.graph.AddRelationship(
			row.SourceID,
			row.DestinationID,
			row.TypeID,
			state.typeNames[row.TypeID],
			row.Group,
		)
	}

	b.reportProgress(state, ProgressPhaseRelationships, len(relationships), len(relationships))
	return nil
}

// conceptPhase sets the attribute record of every described concept,
// promoting the first synonym to FSN where no FSN row exists.
func (b *Builder) conceptPhase(ctx context.Context, state *buildState) error {
	for i, id := range state.order {
		if i%buildCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("after %d concepts: %w", i, ErrBuildCancelled)
			}
		}
		if i%progressReportInterval == 0 {
			b.reportProgress(state, ProgressPhaseConcepts, len(state.order), i)
		}

		acc := state.described[id]
		fsn := acc.fsn
		synonyms := acc.synonyms
		if !acc.fsnFound && len(synonyms) > 0 {
			fsn = synonyms[0]
			synonyms = synonyms[1:]
			state.result.Warnings = append(state.result.Warnings, BuildWarning{
				ConceptID:    id,
				PromotedTerm: fsn,
			})
			state.result.Stats.FSNPromotions++
			b.options.Logger.Warn("concept has no FSN; promoting synonym",
				slog.Uint64("sctid", id),
				slog.String("synonym", fsn),
			)
		}

		_ = state.graph.AddConcept(Concept{
			ID:       id,
			FSN:      fsn,
			Synonyms: synonyms,
		})
		state.result.Stats.ConceptsDescribed++
	}

	b.reportProgress(state, ProgressPhaseConcepts, len(state.order), len(state.order))
	return nil
}

// cancelled finalizes a build that was interrupted by context cancellation.
// The partial graph is discarded; statistics and warnings are preserved for
// diagnostics.
func (b *Builder) cancelled(ctx context.Context, span trace.Span, state *buildState, err error) (*BuildResult, error) {
	state.result.Incomplete = true
	state.result.Graph = nil
	b.finishStats(state)
	setBuildSpanResult(span, 0, 0, true)
	recordBuildMetrics(ctx, time.Since(state.startTime), 0, 0, false)
	b.options.Logger.Warn("SNOMED graph build cancelled", slog.String("reason", err.Error()))
	return state.result, err
}

// finishStats stamps the duration counters.
func (b *Builder) finishStats(state *buildState) {
	duration := time.Since(state.startTime)
	state.result.Stats.DurationMilli = duration.Milliseconds()
	state.result.Stats.DurationMicro = duration.Microseconds()
}

// reportProgress invokes the progress callback if one is configured.
func (b *Builder) reportProgress(state *buildState, phase ProgressPhase, total, processed int) {
	if b.options.ProgressCallback == nil {
		return
	}
	b.options.ProgressCallback(BuildProgress{
		Phase:         phase,
		RowsTotal:     total,
		RowsProcessed: processed,
	})
}
