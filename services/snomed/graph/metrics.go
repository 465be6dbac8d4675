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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("snomed.graph")
	meter  = otel.Meter("snomed.graph")
)

// Metrics for graph building and querying.
var (
	buildLatency    metric.Float64Histogram
	buildTotal      metric.Int64Counter
	conceptsCreated metric.Int64Histogram
	edgesCreated    metric.Int64Histogram
	queryLatency    metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"snomed_graph_build_duration_seconds",
			metric.WithDescription("Duration of graph build operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"snomed_graph_build_total",
			metric.WithDescription("Total number of graph build operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		conceptsCreated, err = meter.Int64Histogram(
			"snomed_graph_concepts_created",
			metric.WithDescription("Number of concepts in the graph per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesCreated, err = meter.Int64Histogram(
			"snomed_graph_edges_created",
			metric.WithDescription("Number of relationships in the graph per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryLatency, err = meter.Float64Histogram(
			"snomed_graph_query_duration_seconds",
			metric.WithDescription("Duration of graph query operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBuildMetrics records metrics for a build operation.
func recordBuildMetrics(ctx context.Context, duration time.Duration, conceptCount, edgeCount int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))

	buildLatency.Record(ctx, duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)

	if success {
		conceptsCreated.Record(ctx, int64(conceptCount))
		edgesCreated.Record(ctx, int64(edgeCount))
	}
}

// recordQueryMetrics records metrics for a query operation.
func recordQueryMetrics(ctx context.Context, queryType string, duration time.Duration, resultCount int) {
	if err := initMetrics(); err != nil {
		return
	}

	queryLatency.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("query_type", queryType),
			attribute.Int("result_count", resultCount),
		),
	)
}

// startBuildSpan creates a span for a build operation.
func startBuildSpan(ctx context.Context, relationshipRows, descriptionRows int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "GraphBuilder.Build",
		trace.WithAttributes(
			attribute.Int("snomed.relationship_rows", relationshipRows),
			attribute.Int("snomed.description_rows", descriptionRows),
		),
	)
}

// setBuildSpanResult sets the result attributes on a build span.
func setBuildSpanResult(span trace.Span, conceptCount, edgeCount int, incomplete bool) {
	span.SetAttributes(
		attribute.Int("snomed.concept_count", conceptCount),
		attribute.Int("snomed.edge_count", edgeCount),
		attribute.Bool("snomed.incomplete", incomplete),
	)
}

// startQuerySpan creates a span for a query operation.
func startQuerySpan(ctx context.Context, queryType string, sctid uint64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Graph."+queryType,
		trace.WithAttributes(
			attribute.String("snomed.query_type", queryType),
			attribute.Int64("snomed.sctid", int64(sctid)),
		),
	)
}
