// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package procrun

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned when acquiring from a closed pool.
var ErrPoolClosed = errors.New("execution slot pool is closed")

// Pool is a fixed set of execution slots. xEdit holds exclusive file locks,
// so the production pool size is exactly 1: two concurrent invocations
// corrupt each other's working files.
type Pool struct {
	sem    chan struct{}
	closed chan struct{}
	once   sync.Once
}

// NewPool creates a pool with the given number of slots. Sizes below 1 are
// clamped to 1.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}

	return &Pool{
		sem:    make(chan struct{}, size),
		closed: make(chan struct{}),
	}
}

// Acquire blocks until a slot is free, the context is cancelled, or the pool
// is closed. The returned release function is idempotent, so it is safe to
// both defer it and call it early.
func (p *Pool) Acquire(ctx context.Context) (func(), error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, ErrPoolClosed
	}

	var once sync.Once

	release := func() {
		once.Do(func() { <-p.sem })
	}

	return release, nil
}

// Close rejects all future acquisitions. Held slots are unaffected.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.closed) })
}
