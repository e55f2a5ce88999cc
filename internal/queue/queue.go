// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package queue provides an unbounded FIFO queue handing values off
// from producers to blocking consumers.
package queue // import "github.com/go-lpc/psec/internal/queue"

import (
	"context"
	"sync"
)

// Queue is an unbounded, multi-producer multi-consumer FIFO queue.
// Push never blocks; Pop and Front block until a value is available.
//
// The queue provides no close operation: consumers are stopped by
// pushing a sentinel value they recognize.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	ready chan struct{} // closed and reset on each push
}

// New returns a new empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends v at the back of the queue and wakes up all waiting
// consumers.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	if q.ready != nil {
		close(q.ready)
		q.ready = nil
	}
	q.mu.Unlock()
}

// Pop removes and returns the value at the front of the queue,
// blocking until one is available.
func (q *Queue[T]) Pop() T {
	v, _ := q.PopContext(context.Background())
	return v
}

// PopContext is like Pop but returns early with the context error
// when ctx is done.
func (q *Queue[T]) PopContext(ctx context.Context) (T, error) {
	return q.wait(ctx, true)
}

// Front returns the value at the front of the queue without removing
// it, blocking until one is available.
func (q *Queue[T]) Front() T {
	v, _ := q.wait(context.Background(), false)
	return v
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) wait(ctx context.Context, pop bool) (T, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			if pop {
				var zero T
				q.items[0] = zero
				q.items = q.items[1:]
			}
			q.mu.Unlock()
			return v, nil
		}
		if q.ready == nil {
			q.ready = make(chan struct{})
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}
