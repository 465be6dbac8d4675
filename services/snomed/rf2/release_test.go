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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	relationshipHeader = "id\teffectiveTime\tactive\tmoduleId\tsourceId\tdestinationId\trelationshipGroup\ttypeId\tcharacteristicTypeId\tmodifierId"
	descriptionHeader  = "id\teffectiveTime\tactive\tmoduleId\tconceptId\tlanguageCode\ttypeId\tterm\tcaseSignificanceId"

	fsnType     = "900000000000003001"
	synType     = "900000000000013009"
	isAType     = "116680003"
	rootConcept = "138875005"
)

// relationshipRow renders one relationship line with realistic filler columns.
func relationshipRow(active, source, destination, group, typeID string) string {
	return strings.Join([]string{
		"100001", "20230731", active, "900000000000207008",
		source, destination, group, typeID,
		"900000000000011006", "900000000000451002",
	}, "\t")
}

// descriptionRow renders one description line with realistic filler columns.
func descriptionRow(active, conceptID, typeID, term string) string {
	return strings.Join([]string{
		"200001", "20230731", active, "900000000000207008",
		conceptID, "en", typeID, term,
		"900000000000448009",
	}, "\t")
}

func fixtureRelationshipsTSV() string {
	return strings.Join([]string{
		relationshipHeader,
		relationshipRow("1", "404684003", rootConcept, "0", isAType),
		relationshipRow("1", "22298006", "404684003", "0", isAType),
		relationshipRow("0", "22298006", rootConcept, "0", isAType),
	}, "\n") + "\n"
}

func fixtureDescriptionsTSV() string {
	return strings.Join([]string{
		descriptionHeader,
		descriptionRow("1", rootConcept, fsnType, "SNOMED CT Concept (SNOMED RT+CTV3)"),
		descriptionRow("1", "404684003", fsnType, "Clinical finding (finding)"),
		descriptionRow("1", "22298006", fsnType, "Myocardial infarction (disorder)"),
		descriptionRow("1", "22298006", synType, "Heart attack"),
		descriptionRow("1", isAType, fsnType, "Is a (attribute)"),
	}, "\n") + "\n"
}

// writeRelease materializes a minimal RF2 release tree and returns its root.
func writeRelease(t *testing.T, dirName, namespace, date, langcode, relationships, descriptions string) string {
	t.Helper()
	releaseDir := filepath.Join(t.TempDir(), dirName)
	terminology := filepath.Join(releaseDir, "Snapshot", "Terminology")
	require.NoError(t, os.MkdirAll(terminology, 0o755))

	relPath := filepath.Join(terminology,
		fmt.Sprintf("sct2_Relationship_Snapshot_%s_%s.txt", namespace, date))
	require.NoError(t, os.WriteFile(relPath, []byte(relationships), 0o644))

	descPath := filepath.Join(terminology,
		fmt.Sprintf("sct2_Description_Snapshot-%s_%s_%s.txt", langcode, namespace, date))
	require.NoError(t, os.WriteFile(descPath, []byte(descriptions), 0o644))

	return releaseDir
}

func TestLocateRelease_International(t *testing.T) {
	dir := writeRelease(t, "SnomedCT_InternationalRF2_PRODUCTION_20230731T120000Z",
		"INT", "20230731", "en", fixtureRelationshipsTSV(), fixtureDescriptionsTSV())

	release, err := LocateRelease(dir, "en")
	require.NoError(t, err)
	assert.Equal(t, "INT", release.Namespace)
	assert.Equal(t, "20230731", release.VersionDate)
	assert.Equal(t, "en", release.LanguageCode)
	assert.FileExists(t, release.RelationshipsPath)
	assert.FileExists(t, release.DescriptionsPath)
	assert.Contains(t, release.RelationshipsPath, "sct2_Relationship_Snapshot_INT_20230731.txt")
	assert.Contains(t, release.DescriptionsPath, "sct2_Description_Snapshot-en_INT_20230731.txt")
}

func TestLocateRelease_NationalNamespace(t *testing.T) {
	dir := writeRelease(t, "SnomedCT_ManagedServiceUS_PRODUCTION_US1000124_20230901T120000Z",
		"US1000124", "20230901", "en", fixtureRelationshipsTSV(), fixtureDescriptionsTSV())

	release, err := LocateRelease(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "US1000124", release.Namespace)
	assert.Equal(t, "20230901", release.VersionDate)
	assert.Equal(t, "en", release.LanguageCode, "empty language code defaults to en")
}

func TestLocateRelease_TrailingSeparator(t *testing.T) {
	dir := writeRelease(t, "SnomedCT_InternationalRF2_PRODUCTION_20230731T120000Z",
		"INT", "20230731", "en", fixtureRelationshipsTSV(), fixtureDescriptionsTSV())

	release, err := LocateRelease(dir+string(filepath.Separator), "en")
	require.NoError(t, err)
	assert.Equal(t, "20230731", release.VersionDate)
}

func TestLocateRelease_BadName(t *testing.T) {
	cases := []string{
		"Snomed_20230731T120000Z",
		"SnomedCT_InternationalRF2_PRODUCTION_EXTRA_INT_20230731T120000Z",
		"SnomedCT_InternationalRF2_PRODUCTION_20230731",
		"SnomedCT_InternationalRF2_PRODUCTION_2023-07-31T12:00:00Z",
	}
	for _, name := range cases {
		t.Run(name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.MkdirAll(dir, 0o755))

			_, err := LocateRelease(dir, "en")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrBadReleaseName)
		})
	}
}

func TestLocateRelease_MissingPath(t *testing.T) {
	_, err := LocateRelease(filepath.Join(t.TempDir(), "no-such-release"), "en")
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLocateRelease_MissingCoreFiles(t *testing.T) {
	t.Run("no snapshot files at all", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "SnomedCT_InternationalRF2_PRODUCTION_20230731T120000Z")
		require.NoError(t, os.MkdirAll(dir, 0o755))

		_, err := LocateRelease(dir, "en")
		require.Error(t, err)
		assert.ErrorIs(t, err, fs.ErrNotExist)
		assert.Contains(t, err.Error(), "relationship snapshot")
	})

	t.Run("missing language file", func(t *testing.T) {
		dir := writeRelease(t, "SnomedCT_InternationalRF2_PRODUCTION_20230731T120000Z",
			"INT", "20230731", "en", fixtureRelationshipsTSV(), fixtureDescriptionsTSV())

		_, err := LocateRelease(dir, "en-GB")
		require.Error(t, err)
		assert.ErrorIs(t, err, fs.ErrNotExist)
		assert.Contains(t, err.Error(), "description snapshot")
	})
}
