// Copyright (c) evildarkarchon 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package state

import "sync"

// Store is the single owner of the run state. All writes go through Update,
// which applies the transform atomically and notifies every subscriber
// exactly once. Reads never see a partially applied transform.
type Store struct {
	mu     sync.Mutex
	snap   Snapshot
	subs   map[int]*subscriber
	nextID int
}

// NewStore creates a Store in the idle phase.
func NewStore() *Store {
	return &Store{
		snap: Snapshot{Phase: PhaseIdle},
		subs: make(map[int]*subscriber),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snap
}

// Update applies fn to the state under the store's write lock and publishes
// the resulting snapshot to all subscribers. Each call produces exactly one
// notification per subscriber.
func (s *Store) Update(fn func(*Snapshot)) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.snap)

	for _, sub := range s.subs {
		sub.push(s.snap)
	}

	return s.snap
}

// Subscribe registers a new observer. The returned channel first delivers
// the current snapshot, then one snapshot per subsequent Update, in order.
// The cancel function unregisters the observer and closes the channel; it is
// safe to call more than once.
func (s *Store) Subscribe(buffer int) (<-chan Snapshot, func()) {
	s.mu.Lock()

	sub := newSubscriber(buffer)
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	sub.push(s.snap)

	s.mu.Unlock()

	go sub.drain()

	var once sync.Once

	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			sub.stop()
		})
	}

	return sub.ch, cancel
}

// subscriber decouples the store's write path from slow receivers: pushes
// append to an internal queue and a drain goroutine forwards to the channel,
// so Update never blocks and no notification is dropped.
type subscriber struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []Snapshot
	stopped bool
	done    chan struct{}
	ch      chan Snapshot
}

func newSubscriber(buffer int) *subscriber {
	sub := &subscriber{
		done: make(chan struct{}),
		ch:   make(chan Snapshot, buffer),
	}
	sub.cond = sync.NewCond(&sub.mu)

	return sub
}

func (sub *subscriber) push(snap Snapshot) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.stopped {
		return
	}

	sub.pending = append(sub.pending, snap)
	sub.cond.Signal()
}

func (sub *subscriber) stop() {
	sub.mu.Lock()
	sub.stopped = true
	close(sub.done)
	sub.cond.Signal()
	sub.mu.Unlock()
}

func (sub *subscriber) drain() {
	for {
		sub.mu.Lock()

		for len(sub.pending) == 0 && !sub.stopped {
			sub.cond.Wait()
		}

		if len(sub.pending) == 0 && sub.stopped {
			sub.mu.Unlock()
			close(sub.ch)

			return
		}

		next := sub.pending[0]
		sub.pending = sub.pending[1:]

		sub.mu.Unlock()

		select {
		case sub.ch <- next:
		case <-sub.done:
			close(sub.ch)

			return
		}
	}
}
