// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/AleutianAI/snomedgraph/services/snomed/graph"
)

// Save writes a snapshot file atomically.
//
// Description:
//
//	Streams the graph into a temporary file in the target directory and
//	renames it over the destination, so readers never observe a partially
//	written snapshot. The temporary file is removed on failure.
//
// Inputs:
//
//	path - Destination file path
//	g    - The graph; must be frozen
//
// Outputs:
//
//	error - graph.ErrNotFrozen or a filesystem error
func Save(path string, g *graph.Graph) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("creating temporary snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if err := Write(tmp, g); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temporary snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publishing snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot file and returns the restored graph.
func Load(path string) (*graph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	g, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return g, nil
}

// Inspect reads only the header of a snapshot file.
//
// Description:
//
//	Decompresses just enough of the file to decode the first record, so
//	callers can report a snapshot's identity and size without paying for a
//	full load.
//
// Inputs:
//
//	path - Snapshot file path
//
// Outputs:
//
//	*Header - The stream header
//	error - ErrUnsupportedSnapshot, ErrCorruptSnapshot, or a read error
func Inspect(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer zr.Close()

	var header Header
	if err := json.NewDecoder(zr).Decode(&header); err != nil {
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
	return &header, nil
}
