// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerReturnsDefaultWhenNotSet(t *testing.T) {
	ctx := context.Background()
	assert.Same(t, DefaultLogger, Logger(ctx))
}

func TestLoggerRoundTrip(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := slog.New(slog.NewTextHandler(buf, nil))

	ctx := New(context.Background(), logger)
	require.Same(t, logger, Logger(ctx))

	Info(ctx, "hello", "key", "value")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "key=value")
}

func TestNewNilLoggerFallsBack(t *testing.T) {
	ctx := New(context.Background(), nil)
	assert.Same(t, DefaultLogger, Logger(ctx))
}

func TestLogLevelFromEnv(t *testing.T) {
	cases := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"bananas": slog.LevelWarn,
		"":        slog.LevelWarn,
	}

	for in, want := range cases {
		stubs := gostub.New()
		stubs.SetEnv(logLevelEnvName, in)

		assert.Equalf(t, want, logLevelFromEnv(), "env value %q", in)
		stubs.Reset()
	}
}

func TestPrettyHandlerWritesMessageAndAttrs(t *testing.T) {
	buf := new(bytes.Buffer)
	h := NewPrettyHandler(&slog.HandlerOptions{Level: slog.LevelDebug},
		WithDestinationWriter(buf),
	)
	logger := slog.New(h)

	logger.Info("cleaning started", "plugin", "Example.esp")

	out := buf.String()
	assert.Contains(t, out, "cleaning started")
	assert.Contains(t, out, "plugin")
	assert.Contains(t, out, "Example.esp")
}
