// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// snomedctl is the command line interface to the SNOMED CT graph engine.
// It builds a graph from an RF2 release, persists it, and answers
// hierarchy, relationship, and path queries against the stored graph.
package main

import (
	"os"
)

// version is stamped into telemetry resource attributes.
const version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitError)
	}
}
