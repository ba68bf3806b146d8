// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatchFirstSignalRequestsStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	sigCh := make(chan os.Signal, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex

	var stops, forces int

	done := make(chan struct{})
	go func() {
		defer close(done)
		Watch(ctx, sigCh, func() {
			mu.Lock()
			stops++
			mu.Unlock()
		}, func() {
			mu.Lock()
			forces++
			mu.Unlock()
		}, cancel)
	}()

	sigCh <- os.Interrupt
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, 1, stops)
	assert.Equal(t, 0, forces)
	mu.Unlock()

	close(sigCh)
	<-done
}

func TestWatchSecondSignalForces(t *testing.T) {
	defer goleak.VerifyNone(t)

	sigCh := make(chan os.Signal, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex

	var stops, forces int

	done := make(chan struct{})
	go func() {
		defer close(done)
		Watch(ctx, sigCh, func() {
			mu.Lock()
			stops++
			mu.Unlock()
		}, func() {
			mu.Lock()
			forces++
			mu.Unlock()
		}, cancel)
	}()

	sigCh <- os.Interrupt
	sigCh <- os.Interrupt

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchdog did not return after second signal")
	}

	mu.Lock()
	assert.Equal(t, 1, stops)
	assert.Equal(t, 1, forces)
	mu.Unlock()

	require.Error(t, ctx.Err(), "expected context to be cancelled")
}
