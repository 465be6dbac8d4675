// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rf2 locates and parses SNOMED CT RF2 snapshot releases.
//
// A release is a directory whose name follows the Release Format convention,
// for example SnomedCT_InternationalRF2_PRODUCTION_20230731T120000Z. The
// package resolves the two core snapshot files (relationships and
// descriptions), streams their tab-separated rows into the row types of the
// graph package, and drives a graph build from them.
//
// Parsing is column-name based: a file may carry its columns in any order as
// long as the header row names the required ones.
package rf2

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AleutianAI/snomedgraph/services/snomed/graph"
)

// Core file name templates within <release>/Snapshot/Terminology.
const (
	relationshipFilePattern = "sct2_Relationship_Snapshot_%s_%s.txt"
	descriptionFilePattern  = "sct2_Description_Snapshot-%s_%s_%s.txt"

	// releaseTimestampLayout is the trailing element of a release directory
	// name. The derived version date uses dateLayout.
	releaseTimestampLayout = "20060102T150405Z"
	dateLayout             = "20060102"

	// internationalNamespace is assumed when the release directory name has
	// no country namespace element.
	internationalNamespace = "INT"
)

var (
	// ErrBadReleaseName is returned when a release directory's basename does
	// not follow the RF2 release naming convention.
	ErrBadReleaseName = errors.New("directory does not follow the RF2 release naming convention")

	// ErrBadHeader is returned when a core release file has no header row or
	// its header lacks a required column.
	ErrBadHeader = errors.New("malformed release file header")
)

// Release describes a located RF2 snapshot release.
type Release struct {
	// Path is the release root directory.
	Path string

	// Namespace is the country namespace element of the directory name, or
	// "INT" when the name carries none.
	Namespace string

	// VersionDate is the release date in YYYYMMDD form, derived from the
	// directory name's timestamp element.
	VersionDate string

	// LanguageCode selects which description snapshot file the release
	// resolves to.
	LanguageCode string

	// RelationshipsPath is the absolute path of the relationship snapshot.
	RelationshipsPath string

	// DescriptionsPath is the absolute path of the description snapshot for
	// LanguageCode.
	DescriptionsPath string
}

// LocateRelease resolves the core snapshot files of an RF2 release.
//
// Description:
//
//	Splits the release directory's basename on underscores. Four elements
//	mean an International release; five mean the fourth element is a
//	country namespace. The final element must be a release timestamp of
//	the form 20230731T120000Z; its date part selects the core file names.
//	Both core files must exist.
//
// Inputs:
//
//	path - The release root directory
//	langcode - Description language, e.g. "en" (empty selects "en")
//
// Outputs:
//
//	*Release - Resolved paths and release metadata
//	error - ErrBadReleaseName, or a wrapped fs.ErrNotExist when the
//	        directory or a core file is missing
func LocateRelease(path string, langcode string) (*Release, error) {
	if langcode == "" {
		langcode = graph.DefaultLanguageCode
	}
	path = filepath.Clean(path)

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("release path: %w", err)
	}

	dir := filepath.Base(path)
	elements := strings.Split(dir, "_")

	var namespace, timestamp string
	switch len(elements) {
	case 4:
		namespace = internationalNamespace
		timestamp = elements[3]
	case 5:
		namespace = elements[3]
		timestamp = elements[4]
	default:
		return nil, fmt.Errorf("release directory %q: %w", dir, ErrBadReleaseName)
	}

	released, err := time.Parse(releaseTimestampLayout, timestamp)
	if err != nil {
		return nil, fmt.Errorf("release directory %q: %w", dir, ErrBadReleaseName)
	}
	versionDate := released.Format(dateLayout)

	terminology := filepath.Join(path, "Snapshot", "Terminology")
	relationshipsPath := filepath.Join(terminology,
		fmt.Sprintf(relationshipFilePattern, namespace, versionDate))
	if _, err := os.Stat(relationshipsPath); err != nil {
		return nil, fmt.Errorf("relationship snapshot: %w", err)
	}
	descriptionsPath := filepath.Join(terminology,
		fmt.Sprintf(descriptionFilePattern, langcode, namespace, versionDate))
	if _, err := os.Stat(descriptionsPath); err != nil {
		return nil, fmt.Errorf("description snapshot: %w", err)
	}

	return &Release{
		Path:              path,
		Namespace:         namespace,
		VersionDate:       versionDate,
		LanguageCode:      langcode,
		RelationshipsPath: relationshipsPath,
		DescriptionsPath:  descriptionsPath,
	}, nil
}
