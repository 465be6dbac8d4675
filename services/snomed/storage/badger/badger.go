// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger persists one built graph in an embedded BadgerDB store.
//
// The CLI builds a release once, saves the graph here, and every query
// command reopens the store instead of reparsing RF2 files. The store
// holds a single graph: a meta record plus one value per node and per
// edge, all in the snapshot package's record shapes.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for the graph store.
type Config struct {
	// Path is the directory for store files.
	// Required unless InMemory is true.
	Path string

	// InMemory keeps the store off disk. Useful for testing.
	InMemory bool

	// SyncWrites makes every commit durable before returning.
	SyncWrites bool

	// Logger receives BadgerDB's internal log lines.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns the production configuration for a store directory.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns a configuration for tests: no disk I/O, no sync.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
	}
}

// storeLogger adapts slog.Logger to BadgerDB's Logger interface.
type storeLogger struct {
	logger *slog.Logger
}

func (l *storeLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *storeLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *storeLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *storeLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// DB is an open graph store.
//
// Thread Safety: Safe for concurrent use. Writes happen only through
// SaveGraph, which callers serialize themselves (the CLI runs one build
// at a time).
type DB struct {
	db       *badger.DB
	path     string
	inMemory bool
}

// Open creates and opens a graph store with the given configuration.
//
// Description:
//
//	Opens BadgerDB at the configured path, creating the directory when it
//	does not exist, or in memory when InMemory is set.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*DB - The opened store. Caller must call Close() when done.
//	error - Non-nil if the path is invalid or the store cannot be opened.
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&storeLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}

	return &DB{db: db, path: cfg.Path, inMemory: cfg.InMemory}, nil
}

// Close closes the store. Safe to call once per Open.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the store directory, or empty string for in-memory stores.
func (d *DB) Path() string {
	return d.path
}

// InMemory reports whether the store lives only in memory.
func (d *DB) InMemory() bool {
	return d.inMemory
}

// withTxn executes fn inside a read-write transaction and commits when fn
// returns nil. The transaction is discarded on error.
func (d *DB) withTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// withReadTxn executes fn inside a read-only transaction.
func (d *DB) withReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := d.db.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}
