// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"

	"github.com/evildarkarchon/autoqac/internal/ctxlog"
)

// Watch monitors the signal channel and translates signals into stop requests.
// The first signal calls stop (cooperative), any further signal calls force
// and cancels the context. Watch returns when the channel is closed or after
// a forced stop.
func Watch(ctx context.Context, sigCh chan os.Signal, stop, force func(), cancel context.CancelFunc) {
	seen := false

	for sig := range sigCh {
		if seen {
			ctxlog.Logger(ctx).Info("watchdog", "detail", "received repeated signal, forcing termination", "signal", sig.String())
			force()
			cancel()

			return
		}

		ctxlog.Logger(ctx).Info("watchdog", "detail", "received signal, requesting cooperative stop", "signal", sig.String())
		stop()

		seen = true
	}
}
