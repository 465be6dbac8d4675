// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/snomedgraph/services/snomed/graph"
	"github.com/AleutianAI/snomedgraph/services/snomed/snapshot"
)

// -----------------------------------------------------------------------------
// Store Errors
// -----------------------------------------------------------------------------

var (
	// ErrNoGraph is returned when the store holds no graph meta record,
	// either because nothing was ever saved or a save did not finish.
	ErrNoGraph = errors.New("store holds no graph")

	// ErrCorruptStore is returned when the stored records do not match the
	// counts the meta record promises.
	ErrCorruptStore = errors.New("corrupt graph store")
)

// -----------------------------------------------------------------------------
// Key Layout
// -----------------------------------------------------------------------------

var (
	metaKey    = []byte("meta")
	nodePrefix = []byte("n/")
	edgePrefix = []byte("e/")
)

// storeBatchSize caps the records per write transaction, keeping each
// commit under badger's transaction size limits on full releases.
const storeBatchSize = 5000

// nodeKey is "n/" followed by the big-endian SCTID, so node keys sort
// numerically by concept id.
func nodeKey(id uint64) []byte {
	key := make([]byte, len(nodePrefix)+8)
	copy(key, nodePrefix)
	binary.BigEndian.PutUint64(key[len(nodePrefix):], id)
	return key
}

// edgeKey is "e/" + source + "/" + target, grouping a concept's outgoing
// edges under a contiguous key range.
func edgeKey(src, dst uint64) []byte {
	key := make([]byte, len(edgePrefix)+17)
	copy(key, edgePrefix)
	binary.BigEndian.PutUint64(key[len(edgePrefix):], src)
	key[len(edgePrefix)+8] = '/'
	binary.BigEndian.PutUint64(key[len(edgePrefix)+9:], dst)
	return key
}

// -----------------------------------------------------------------------------
// Save
// -----------------------------------------------------------------------------

type kvPair struct {
	key   []byte
	value []byte
}

// writeBatch accumulates pairs and commits them in fixed-size transactions.
type writeBatch struct {
	db      *DB
	ctx     context.Context
	pending []kvPair
}

func (b *writeBatch) set(key, value []byte) error {
	b.pending = append(b.pending, kvPair{key: key, value: value})
	if len(b.pending) < storeBatchSize {
		return nil
	}
	return b.flush()
}

func (b *writeBatch) flush() error {
	if len(b.pending) == 0 {
		return nil
	}
	err := b.db.withTxn(b.ctx, func(txn *badger.Txn) error {
		for _, p := range b.pending {
			if err := txn.Set(p.key, p.value); err != nil {
				return err
			}
		}
		return nil
	})
	b.pending = b.pending[:0]
	return err
}

// SaveGraph replaces the stored graph with g.
//
// Description:
//
//	Clears the store, writes one record per concept and per relationship
//	in batched transactions, and writes the meta record last. A save that
//	dies partway leaves no meta record, so LoadGraph reports ErrNoGraph
//	instead of returning a torn graph.
//
// Inputs:
//
//	ctx - Cancellation; checked per batch commit
//	g   - The graph; must be frozen
//
// Outputs:
//
//	error - graph.ErrNotFrozen, cancellation, or a storage error
func (d *DB) SaveGraph(ctx context.Context, g *graph.Graph) error {
	if !g.IsFrozen() {
		return fmt.Errorf("store source: %w", graph.ErrNotFrozen)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	if err := d.db.DropAll(); err != nil {
		return fmt.Errorf("clearing store: %w", err)
	}

	b := &writeBatch{db: d, ctx: ctx}

	var saveErr error
	for c := range g.Concepts() {
		value, err := json.Marshal(snapshot.NewNodeRecord(c))
		if err == nil {
			err = b.set(nodeKey(c.ID), value)
		}
		if err != nil {
			saveErr = fmt.Errorf("storing node %d: %w", c.ID, err)
			break
		}
	}
	if saveErr != nil {
		return saveErr
	}

	for r := range g.Relationships() {
		value, err := json.Marshal(snapshot.NewEdgeRecord(r))
		if err == nil {
			err = b.set(edgeKey(r.Source.ID, r.Target.ID), value)
		}
		if err != nil {
			saveErr = fmt.Errorf("storing edge %d -> %d: %w", r.Source.ID, r.Target.ID, err)
			break
		}
	}
	if saveErr != nil {
		return saveErr
	}

	if err := b.flush(); err != nil {
		return fmt.Errorf("storing graph records: %w", err)
	}

	meta := snapshot.Header{
		Format:    snapshot.FormatName,
		Version:   snapshot.FormatVersion,
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Nodes:     g.Len(),
		Edges:     g.EdgeCount(),
	}
	value, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding store meta: %w", err)
	}
	err = d.withTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(metaKey, value)
	})
	if err != nil {
		return fmt.Errorf("storing meta: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Load
// -----------------------------------------------------------------------------

// Meta reads the stored graph's meta record without loading the graph.
//
// Outputs:
//
//	*snapshot.Header - Identity, write time and counts of the stored graph
//	error - ErrNoGraph when nothing is stored, or a read error
func (d *DB) Meta(ctx context.Context) (*snapshot.Header, error) {
	var header snapshot.Header
	err := d.withReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNoGraph
		}
		if err != nil {
			return fmt.Errorf("reading store meta: %w", err)
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &header); err != nil {
				return fmt.Errorf("decoding store meta: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if header.Format != snapshot.FormatName {
		return nil, fmt.Errorf("format %q: %w", header.Format, snapshot.ErrUnsupportedSnapshot)
	}
	if header.Version != snapshot.FormatVersion {
		return nil, fmt.Errorf("version %d: %w", header.Version, snapshot.ErrUnsupportedSnapshot)
	}
	return &header, nil
}

// LoadGraph restores the stored graph.
//
// Description:
//
//	Reads the meta record, prefix-scans the node and edge ranges into a
//	fresh graph, checks the record counts against the meta, then freezes
//	and validates the result.
//
// Inputs:
//
//	ctx - Cancellation; checked while scanning
//
// Outputs:
//
//	*graph.Graph - Frozen and validated
//	error - ErrNoGraph, ErrCorruptStore, cancellation, or a read error
func (d *DB) LoadGraph(ctx context.Context) (*graph.Graph, error) {
	meta, err := d.Meta(ctx)
	if err != nil {
		return nil, err
	}

	g := graph.NewGraph(graph.WithExpectedConcepts(meta.Nodes))
	nodes, edges := 0, 0

	err = d.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(nodePrefix); it.ValidForPrefix(nodePrefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			err := it.Item().Value(func(val []byte) error {
				var rec snapshot.NodeRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("decoding node record: %w", err)
				}
				nodes++
				// The graph is still building, so this cannot fail.
				_ = g.AddConcept(rec.Concept())
				return nil
			})
			if err != nil {
				return err
			}
		}

		for it.Seek(edgePrefix); it.ValidForPrefix(edgePrefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			err := it.Item().Value(func(val []byte) error {
				var rec snapshot.EdgeRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("decoding edge record: %w", err)
				}
				edges++
				_ = g.AddRelationship(rec.Src, rec.Dst, rec.TypeID, rec.Type, rec.Group)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if nodes != meta.Nodes || edges != meta.Edges {
		return nil, fmt.Errorf("meta promises %d nodes and %d edges, store has %d and %d: %w",
			meta.Nodes, meta.Edges, nodes, edges, ErrCorruptStore)
	}

	g.Freeze()
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("validating loaded graph: %w", err)
	}
	return g, nil
}
