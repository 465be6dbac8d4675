// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rf2

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/snomedgraph/services/snomed/graph"
)

// LoadOptions configures LoadRelease.
type LoadOptions struct {
	// LanguageCode selects the description snapshot file.
	// Default: "en"
	LanguageCode string

	// Logger receives the load summary and is forwarded to the builder.
	// Default: slog.Default()
	Logger *slog.Logger

	// Progress is forwarded to the graph builder. May be nil.
	Progress graph.ProgressFunc
}

// DefaultLoadOptions returns sensible defaults.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		LanguageCode: graph.DefaultLanguageCode,
		Logger:       slog.Default(),
	}
}

// LoadOption is a functional option for LoadRelease.
type LoadOption func(*LoadOptions)

// WithLanguageCode selects the description snapshot language.
func WithLanguageCode(code string) LoadOption {
	return func(o *LoadOptions) {
		if code != "" {
			o.LanguageCode = code
		}
	}
}

// WithLoadLogger sets the logger for the load summary and the build.
func WithLoadLogger(logger *slog.Logger) LoadOption {
	return func(o *LoadOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithProgress forwards a progress callback to the graph builder.
func WithProgress(fn graph.ProgressFunc) LoadOption {
	return func(o *LoadOptions) {
		o.Progress = fn
	}
}

// LoadRelease builds a graph straight from an RF2 release directory.
//
// Description:
//
//	Locates the two core snapshot files, reads them concurrently and hands
//	the rows to a graph builder. The first reader error cancels the other
//	reader.
//
// Inputs:
//
//	ctx - Context for cancellation of both reading and building
//	releasePath - The release root directory
//	opts - Optional language, logger and progress settings
//
// Outputs:
//
//	*graph.BuildResult - The frozen graph plus warnings and statistics
//	error - Release location, read, or build errors
//
// Example:
//
//	result, err := rf2.LoadRelease(ctx, "/data/SnomedCT_InternationalRF2_PRODUCTION_20230731T120000Z")
//	if err != nil {
//	    return err
//	}
//	g := result.Graph
func LoadRelease(ctx context.Context, releasePath string, opts ...LoadOption) (*graph.BuildResult, error) {
	options := DefaultLoadOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	release, err := LocateRelease(releasePath, options.LanguageCode)
	if err != nil {
		return nil, err
	}

	var (
		relationships []graph.RelationshipRow
		descriptions  []graph.DescriptionRow
	)
	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		relationships, err = ReadRelationships(egctx, release.RelationshipsPath)
		return err
	})
	eg.Go(func() error {
		var err error
		descriptions, err = ReadDescriptions(egctx, release.DescriptionsPath)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	options.Logger.Info("release files loaded",
		slog.String("namespace", release.Namespace),
		slog.String("version", release.VersionDate),
		slog.String("language", release.LanguageCode),
		slog.Int("relationship_rows", len(relationships)),
		slog.Int("description_rows", len(descriptions)),
	)

	builder := graph.NewBuilder(
		graph.WithLogger(options.Logger),
		graph.WithProgressCallback(options.Progress),
	)
	return builder.Build(ctx, relationships, descriptions)
}
