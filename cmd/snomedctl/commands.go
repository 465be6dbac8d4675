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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/snomedgraph/pkg/logging"
	"github.com/AleutianAI/snomedgraph/pkg/telemetry"
	"github.com/AleutianAI/snomedgraph/services/snomed/graph"
	store "github.com/AleutianAI/snomedgraph/services/snomed/storage/badger"
)

// =============================================================================
// GLOBAL STATE
// =============================================================================

var (
	// Global flags.
	configPath string
	storeDir   string
	logLevel   string
	logJSON    bool
	quiet      bool
	jsonOutput bool

	// config is the loaded CLI configuration.
	config Config

	// logger is the process logger, built in the root PersistentPreRun.
	logger *logging.Logger

	// telemetryShutdown flushes telemetry exporters before the process
	// exits.
	telemetryShutdown func(context.Context) error
)

// queryTimeout bounds one query command end to end, including loading a
// full release from the store.
const queryTimeout = 5 * time.Minute

// =============================================================================
// ROOT COMMAND
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "snomedctl",
	Short: "Build and query SNOMED CT concept graphs",
	Long: `snomedctl builds an in-memory directed graph from a SNOMED CT RF2
release, persists it, and answers hierarchy and relationship queries.

A release is loaded once with 'build', which stores the finished graph.
Query commands load the stored graph and traverse it.

Examples:
  # Build the graph from an RF2 snapshot directory
  snomedctl build ./SnomedCT_InternationalRF2/Snapshot

  # Walk the is-a hierarchy
  snomedctl query parents 22298006
  snomedctl query ancestors 22298006 --steps 3

  # Find a relationship path between two concepts
  snomedctl query path 22298006 80891009

  # Export the graph as CSV for other tools
  snomedctl export --dir ./out`,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdownRuntime()
	},
}

// initRuntime loads configuration, applies flag overrides, and builds the
// logger and telemetry for this invocation.
func initRuntime(cmd *cobra.Command) {
	explicit := rootCmd.PersistentFlags().Changed("config")
	cfg, err := loadConfig(configPath, explicit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading configuration: %v\n", err)
		os.Exit(exitError)
	}
	config = cfg

	// Flags override the file.
	if storeDir != "" {
		config.Store = storeDir
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
	if logJSON {
		config.Logging.JSON = true
	}
	if quiet {
		config.Logging.Quiet = true
	}

	logCfg, err := config.loggingConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading configuration: %v\n", err)
		os.Exit(exitError)
	}
	logger = logging.New(logCfg)

	shutdown, err := telemetry.Init(cmd.Context(), config.telemetryConfig())
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		os.Exit(exitError)
	}
	telemetryShutdown = shutdown
}

// shutdownRuntime flushes telemetry exporters.
func shutdownRuntime() {
	if telemetryShutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := telemetryShutdown(ctx); err != nil {
		logger.Warn("telemetry shutdown failed", "error", err)
	}
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// openStore opens the configured graph store. Badger's own log lines only
// show up at debug level.
func openStore() (*store.DB, error) {
	cfg := store.DefaultConfig(config.Store)
	if config.Logging.Level == "debug" {
		cfg.Logger = logger.Slog()
	}
	return store.Open(cfg)
}

// loadStoredGraph loads the persisted graph into memory and closes the
// store again. Queries run against the in-memory graph only.
func loadStoredGraph(ctx context.Context) (*graph.Graph, error) {
	db, err := openStore()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	start := time.Now()
	g, err := db.LoadGraph(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoGraph) {
			return nil, fmt.Errorf("%w (run 'snomedctl build' first)", err)
		}
		return nil, err
	}

	logger.Info("SNOMED graph loaded",
		"vertices", g.Len(),
		"edges", g.EdgeCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return g, nil
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	// Assigned here rather than in the rootCmd literal: initRuntime reads
	// rootCmd's flags, and referencing it from the literal would form a
	// package initialization cycle.
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		initRuntime(cmd)
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&storeDir, "store", "", "Graph store directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress log output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Write results as JSON")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(infoCmd)
}
