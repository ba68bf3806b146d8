// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package autoqac provides the version and commit information for the AutoQAC application.
package autoqac

var (
	// Version is set during the build process.
	Version = "dev"
	// Commit is set during the build process.
	Commit = "unknown"
)
