// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package hangwatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// constantCPU returns a sampler for a process whose CPU counter never moves.
func constantCPU(exitAfter int) Sampler {
	calls := 0

	return func(_ context.Context, _ int32) (float64, bool, error) {
		calls++
		if exitAfter > 0 && calls > exitAfter {
			return 0, false, nil
		}

		return 10.0, true, nil
	}
}

func TestWatchSignalsHangAfterSustainedIdle(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := New(
		WithInterval(time.Millisecond),
		WithWindow(3*time.Millisecond),
		WithSampler(constantCPU(0)),
	)

	ch := m.Watch(ctx, 1234)

	// The first two samples are inside the window, the third crosses it.
	assert.False(t, <-ch)
	assert.False(t, <-ch)
	assert.True(t, <-ch)

	cancel()

	for range ch { //nolint:revive
	}
}

func TestWatchBusyProcessNeverSignalsHang(t *testing.T) {
	defer goleak.VerifyNone(t)

	cpu := 0.0
	busy := func(_ context.Context, _ int32) (float64, bool, error) {
		cpu += 0.5 // half a CPU-second per sample
		return cpu, true, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := New(
		WithInterval(time.Millisecond),
		WithWindow(2*time.Millisecond),
		WithSampler(busy),
	)

	ch := m.Watch(ctx, 1234)

	for range 5 {
		assert.False(t, <-ch)
	}

	cancel()

	for range ch { //nolint:revive
	}
}

func TestWatchAlreadyExitedProcessEmitsNothing(t *testing.T) {
	defer goleak.VerifyNone(t)

	exited := func(_ context.Context, _ int32) (float64, bool, error) {
		return 0, false, nil
	}

	m := New(WithInterval(time.Millisecond), WithSampler(exited))

	ch := m.Watch(context.Background(), 1234)

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "expected channel close without emission")
	case <-time.After(time.Second):
		t.Fatal("watch did not finish for an exited process")
	}
}

func TestWatchEndsWhenProcessExits(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := New(
		WithInterval(time.Millisecond),
		WithWindow(time.Minute),
		WithSampler(constantCPU(3)),
	)

	ch := m.Watch(context.Background(), 1234)

	received := 0
	for range ch {
		received++
	}

	require.Equal(t, 2, received)
}
