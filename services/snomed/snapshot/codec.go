// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot serializes built graphs to a compact self-describing
// stream and restores them without re-reading a release.
//
// Format:
//
//	A zstd-compressed JSON Lines stream. The first line is a header record
//	naming the format and version and carrying the expected node and edge
//	counts. Every further line is either a node record or an edge record,
//	discriminated by its "t" field. SCTIDs are JSON integers decoded into
//	uint64 fields; they exceed float64's exact-integer range, so generic
//	map decoding would corrupt them.
//
// Lifecycle:
//
//	Write accepts only frozen graphs. Read returns a frozen, validated
//	graph, so a loaded snapshot is immediately queryable.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/AleutianAI/snomedgraph/services/snomed/graph"
)

const (
	// FormatName identifies a stream as a graph snapshot.
	FormatName = "snomedgraph.snapshot"

	// FormatVersion is the stream version this package writes and accepts.
	FormatVersion = 1
)

var (
	// ErrUnsupportedSnapshot is returned when a stream's header names an
	// unknown format or a version this package cannot read.
	ErrUnsupportedSnapshot = errors.New("unsupported snapshot format")

	// ErrCorruptSnapshot is returned when a stream is structurally broken:
	// missing header, unknown record kind, or record counts that do not
	// match the header.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)

// Header is the first record of a snapshot stream.
type Header struct {
	// Format is always FormatName for streams this package writes.
	Format string `json:"format"`

	// Version is the stream format version.
	Version int `json:"version"`

	// ID is a random identifier minted when the snapshot is written.
	ID string `json:"id"`

	// CreatedAt is the write timestamp.
	CreatedAt time.Time `json:"created_at"`

	// Nodes is the number of node records that follow.
	Nodes int `json:"nodes"`

	// Edges is the number of edge records that follow.
	Edges int `json:"edges"`
}

// NodeRecord carries one concept. The badger store reuses it as its node
// value shape, so both persistence paths stay wire-compatible.
type NodeRecord struct {
	T        string   `json:"t"`
	ID       uint64   `json:"id"`
	FSN      string   `json:"fsn"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// EdgeRecord carries one relationship with resolved type attributes.
type EdgeRecord struct {
	T      string `json:"t"`
	Src    uint64 `json:"src"`
	Dst    uint64 `json:"dst"`
	Group  int    `json:"group"`
	Type   string `json:"type"`
	TypeID uint64 `json:"type_id"`
}

// bodyRecord is the union shape body lines decode into before dispatch on T.
type bodyRecord struct {
	T        string   `json:"t"`
	ID       uint64   `json:"id"`
	FSN      string   `json:"fsn"`
	Synonyms []string `json:"synonyms"`
	Src      uint64   `json:"src"`
	Dst      uint64   `json:"dst"`
	Group    int      `json:"group"`
	Type     string   `json:"type"`
	TypeID   uint64   `json:"type_id"`
}

const (
	recordNode = "node"
	recordEdge = "edge"
)

// NewNodeRecord builds the persisted shape of one concept.
func NewNodeRecord(c graph.Concept) NodeRecord {
	return NodeRecord{T: recordNode, ID: c.ID, FSN: c.FSN, Synonyms: c.Synonyms}
}

// NewEdgeRecord builds the persisted shape of one relationship.
func NewEdgeRecord(r graph.Relationship) EdgeRecord {
	return EdgeRecord{
		T:      recordEdge,
		Src:    r.Source.ID,
		Dst:    r.Target.ID,
		Group:  r.Group,
		Type:   r.Type,
		TypeID: r.TypeID,
	}
}

// Concept converts a node record back into a graph concept.
func (n NodeRecord) Concept() graph.Concept {
	return graph.Concept{ID: n.ID, FSN: n.FSN, Synonyms: n.Synonyms}
}

// Write serializes a frozen graph to the stream.
//
// Description:
//
//	Emits the header, one record per concept and one record per
//	relationship, zstd-compressed. Record order within each kind follows
//	graph iteration order and is not part of the format.
//
// Inputs:
//
//	w - Destination stream
//	g - The graph; must be frozen
//
// Outputs:
//
//	error - graph.ErrNotFrozen for an unfinished graph, or a write error
func Write(w io.Writer, g *graph.Graph) error {
	if !g.IsFrozen() {
		return fmt.Errorf("snapshot source: %w", graph.ErrNotFrozen)
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}

	enc := json.NewEncoder(zw)
	header := Header{
		Format:    FormatName,
		Version:   FormatVersion,
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Nodes:     g.Len(),
		Edges:     g.EdgeCount(),
	}
	if err := enc.Encode(header); err != nil {
		zw.Close()
		return fmt.Errorf("writing snapshot header: %w", err)
	}

	for c := range g.Concepts() {
		rec := NewNodeRecord(c)
		if err := enc.Encode(rec); err != nil {
			zw.Close()
			return fmt.Errorf("writing node %d: %w", c.ID, err)
		}
	}
	for r := range g.Relationships() {
		rec := NewEdgeRecord(r)
		if err := enc.Encode(rec); err != nil {
			zw.Close()
			return fmt.Errorf("writing edge %d -> %d: %w", r.Source.ID, r.Target.ID, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("flushing snapshot: %w", err)
	}
	return nil
}

// Read restores a graph from a snapshot stream.
//
// Description:
//
//	Validates the header, replays every node and edge record into a fresh
//	graph, checks the record counts against the header, freezes the graph
//	and verifies its adjacency consistency.
//
// Inputs:
//
//	r - Source stream
//
// Outputs:
//
//	*graph.Graph - Frozen and validated
//	error - ErrUnsupportedSnapshot, ErrCorruptSnapshot, or a read error
func Read(r io.Reader) (*graph.Graph, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer zr.Close()

	dec := json.NewDecoder(zr)

	var header Header
	if err := dec.Decode(&header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("missing header: %w", ErrCorruptSnapshot)
		}
		return nil, fmt.Errorf("reading snapshot header: %w", err)
	}
	if header.Format != FormatName {
		return nil, fmt.Errorf("format %q: %w", header.Format, ErrUnsupportedSnapshot)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("version %d: %w", header.Version, ErrUnsupportedSnapshot)
	}

	g := graph.NewGraph(graph.WithExpectedConcepts(header.Nodes))
	nodes, edges := 0, 0

	for {
		var rec bodyRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading snapshot record: %w", err)
		}

		switch rec.T {
		case recordNode:
			nodes++
			// Adding to a building graph cannot fail.
			_ = g.AddConcept(graph.Concept{ID: rec.ID, FSN: rec.FSN, Synonyms: rec.Synonyms})
		case recordEdge:
			edges++
			_ = g.AddRelationship(rec.Src, rec.Dst, rec.TypeID, rec.Type, rec.Group)
		default:
			return nil, fmt.Errorf("record kind %q: %w", rec.T, ErrCorruptSnapshot)
		}
	}

	if nodes != header.Nodes || edges != header.Edges {
		return nil, fmt.Errorf("header promises %d nodes and %d edges, stream has %d and %d: %w",
			header.Nodes, header.Edges, nodes, edges, ErrCorruptSnapshot)
	}

	g.Freeze()
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("validating loaded graph: %w", err)
	}
	return g, nil
}
