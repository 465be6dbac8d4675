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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTSV drops raw file content into a temp file and returns its path.
func writeTSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadRelationships(t *testing.T) {
	path := writeTSV(t, fixtureRelationshipsTSV())

	rows, err := ReadRelationships(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, uint64(404684003), rows[0].SourceID)
	assert.Equal(t, uint64(138875005), rows[0].DestinationID)
	assert.Equal(t, uint64(116680003), rows[0].TypeID)
	assert.Equal(t, 0, rows[0].Group)
	assert.True(t, rows[0].Active)

	assert.False(t, rows[2].Active, "inactive rows pass through with Active=false")
}

func TestReadRelationships_ColumnOrderIrrelevant(t *testing.T) {
	content := strings.Join([]string{
		"typeId\tactive\tdestinationId\trelationshipGroup\tsourceId",
		"116680003\t1\t138875005\t2\t404684003",
	}, "\n") + "\n"
	path := writeTSV(t, content)

	rows, err := ReadRelationships(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(404684003), rows[0].SourceID)
	assert.Equal(t, uint64(138875005), rows[0].DestinationID)
	assert.Equal(t, 2, rows[0].Group)
}

func TestReadRelationships_Malformed(t *testing.T) {
	t.Run("missing column", func(t *testing.T) {
		path := writeTSV(t, "id\tactive\tsourceId\n100\t1\t404684003\n")
		_, err := ReadRelationships(context.Background(), path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBadHeader)
		assert.Contains(t, err.Error(), "destinationId")
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeTSV(t, "")
		_, err := ReadRelationships(context.Background(), path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBadHeader)
	})

	t.Run("non-numeric id", func(t *testing.T) {
		content := relationshipHeader + "\n" +
			relationshipRow("1", "not-a-number", "138875005", "0", isAType) + "\n"
		path := writeTSV(t, content)

		_, err := ReadRelationships(context.Background(), path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
		assert.Contains(t, err.Error(), "sourceId")
	})

	t.Run("truncated row", func(t *testing.T) {
		content := relationshipHeader + "\n" + "100\t20230731\t1\n"
		path := writeTSV(t, content)

		_, err := ReadRelationships(context.Background(), path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fields")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadRelationships(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
		require.Error(t, err)
	})
}

func TestReadDescriptions(t *testing.T) {
	path := writeTSV(t, fixtureDescriptionsTSV())

	rows, err := ReadDescriptions(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Equal(t, uint64(138875005), rows[0].ConceptID)
	assert.Equal(t, uint64(900000000000003001), rows[0].TypeID)
	assert.Equal(t, "SNOMED CT Concept (SNOMED RT+CTV3)", rows[0].Term)
	assert.True(t, rows[0].Active)

	assert.Equal(t, "Heart attack", rows[3].Term)
	assert.Equal(t, uint64(900000000000013009), rows[3].TypeID)
}

func TestReadDescriptions_QuotesPassThrough(t *testing.T) {
	content := strings.Join([]string{
		descriptionHeader,
		descriptionRow("1", "22298006", synType, `"Heart attack" event`),
		descriptionRow("1", "22298006", synType, `Fracture of "orbit"`),
	}, "\n") + "\n"
	path := writeTSV(t, content)

	rows, err := ReadDescriptions(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, `"Heart attack" event`, rows[0].Term)
	assert.Equal(t, `Fracture of "orbit"`, rows[1].Term)
}

func TestReadDescriptions_SkipsBlankLines(t *testing.T) {
	content := descriptionHeader + "\n\n" +
		descriptionRow("1", "22298006", fsnType, "Myocardial infarction (disorder)") + "\n\n"
	path := writeTSV(t, content)

	rows, err := ReadDescriptions(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
