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
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AleutianAI/snomedgraph/services/snomed/graph"
)

// Column names of the core snapshot files.
const (
	colActive            = "active"
	colSourceID          = "sourceId"
	colDestinationID     = "destinationId"
	colRelationshipGroup = "relationshipGroup"
	colTypeID            = "typeId"
	colConceptID         = "conceptId"
	colTerm              = "term"
)

const (
	// scanCheckInterval is how many lines are read between context
	// cancellation checks.
	scanCheckInterval = 10_000

	// maxLineBytes bounds a single release file line. RF2 terms are short;
	// the bound only guards against scanning a non-release file.
	maxLineBytes = 1 << 20
)

// activeFlag is the RF2 encoding of an active row.
const activeFlag = "1"

// scanRows streams a tab-separated release file. The first line must be a
// header naming every required column; fn is invoked once per non-empty data
// row with the split fields and the header's name-to-index table.
//
// RF2 files use no quoting, so terms containing bare double quotes pass
// through unchanged. encoding/csv would treat them as quote syntax.
func scanRows(ctx context.Context, path string, required []string, fn func(fields []string, idx map[string]int) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening release file: %w", err)
	}
	defer f.Close()

	name := filepath.Base(path)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), maxLineBytes)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		return fmt.Errorf("%s has no header row: %w", name, ErrBadHeader)
	}

	header := strings.Split(scanner.Text(), "\t")
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[col] = i
	}
	width := 0
	for _, col := range required {
		i, ok := idx[col]
		if !ok {
			return fmt.Errorf("%s lacks column %q: %w", name, col, ErrBadHeader)
		}
		if i > width {
			width = i
		}
	}

	line := 1
	for scanner.Scan() {
		line++
		if line%scanCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("reading %s after %d lines: %w", name, line, err)
			}
		}

		text := scanner.Text()
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) <= width {
			return fmt.Errorf("%s line %d: %d fields, need at least %d", name, line, len(fields), width+1)
		}
		if err := fn(fields, idx); err != nil {
			return fmt.Errorf("%s line %d: %w", name, line, err)
		}
	}
	return scanner.Err()
}

// ReadRelationships parses an RF2 relationship snapshot into rows.
//
// Description:
//
//	Inactive rows are carried through with Active=false; filtering is the
//	graph builder's concern, keeping its statistics complete. Row order is
//	preserved because later rows overwrite earlier ones during the build.
//
// Inputs:
//
//	ctx - Context for cancellation (checked every 10000 lines)
//	path - Relationship snapshot file
//
// Outputs:
//
//	[]graph.RelationshipRow - All rows in file order
//	error - ErrBadHeader, a parse error with line context, or a context
//	        error
func ReadRelationships(ctx context.Context, path string) ([]graph.RelationshipRow, error) {
	var rows []graph.RelationshipRow
	required := []string{colActive, colSourceID, colDestinationID, colRelationshipGroup, colTypeID}

	err := scanRows(ctx, path, required, func(fields []string, idx map[string]int) error {
		source, err := strconv.ParseUint(fields[idx[colSourceID]], 10, 64)
		if err != nil {
			return fmt.Errorf("sourceId: %w", err)
		}
		destination, err := strconv.ParseUint(fields[idx[colDestinationID]], 10, 64)
		if err != nil {
			return fmt.Errorf("destinationId: %w", err)
		}
		typeID, err := strconv.ParseUint(fields[idx[colTypeID]], 10, 64)
		if err != nil {
			return fmt.Errorf("typeId: %w", err)
		}
		group, err := strconv.Atoi(fields[idx[colRelationshipGroup]])
		if err != nil {
			return fmt.Errorf("relationshipGroup: %w", err)
		}

		rows = append(rows, graph.RelationshipRow{
			SourceID:      source,
			DestinationID: destination,
			TypeID:        typeID,
			Group:         group,
			Active:        fields[idx[colActive]] == activeFlag,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ReadDescriptions parses an RF2 description snapshot into rows.
//
// Description:
//
//	Language filtering happens at file selection, not per row, so every row
//	of the file is returned. Term text passes through verbatim, embedded
//	quotes included.
//
// Inputs:
//
//	ctx - Context for cancellation (checked every 10000 lines)
//	path - Description snapshot file
//
// Outputs:
//
//	[]graph.DescriptionRow - All rows in file order
//	error - ErrBadHeader, a parse error with line context, or a context
//	        error
func ReadDescriptions(ctx context.Context, path string) ([]graph.DescriptionRow, error) {
	var rows []graph.DescriptionRow
	required := []string{colActive, colConceptID, colTypeID, colTerm}

	err := scanRows(ctx, path, required, func(fields []string, idx map[string]int) error {
		conceptID, err := strconv.ParseUint(fields[idx[colConceptID]], 10, 64)
		if err != nil {
			return fmt.Errorf("conceptId: %w", err)
		}
		typeID, err := strconv.ParseUint(fields[idx[colTypeID]], 10, 64)
		if err != nil {
			return fmt.Errorf("typeId: %w", err)
		}

		rows = append(rows, graph.DescriptionRow{
			ConceptID: conceptID,
			TypeID:    typeID,
			Term:      fields[idx[colTerm]],
			Active:    fields[idx[colActive]] == activeFlag,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
