// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress provides real-time progress reporting for cleaning
// sessions. The orchestrator emits events as it moves through the batch so
// CLI renderers and other observers can show live output without polling
// the state store.
package progress
