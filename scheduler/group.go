// MIT License
//
// Copyright (c) 2026 Meshgrain Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package scheduler

import (
	"container/list"
	"sync"
)

// Group is the per-activation scheduler: a FIFO queue of work items plus the
// bookkeeping needed to enforce (or selectively relax) single-threaded
// execution according to its ReentrancyMode.
type Group struct {
	key    string
	policy Policy

	mu           sync.Mutex
	continuations *list.List
	external      *list.List
	running       map[uint64]WorkItem
	nextRunID     uint64
	stopping      bool
	readyNotify   func(*Group) // invoked (without the lock held) when new work becomes dispatchable
}

// NewGroup constructs a Group for one activation, keyed by its grain or
// activation-address string.
func NewGroup(key string, policy Policy, readyNotify func(*Group)) *Group {
	return &Group{
		key:           key,
		policy:        policy,
		continuations: list.New(),
		external:      list.New(),
		running:       make(map[uint64]WorkItem),
		readyNotify:   readyNotify,
	}
}

// Key returns the group's identifying key.
func (g *Group) Key() string { return g.key }

// Enqueue adds a work item to the appropriate queue: continuations always go
// to the front-of-line relative to external messages, per the ordering
// guarantee that continuations posted by the running turn run before the
// next externally queued turn.
func (g *Group) Enqueue(item WorkItem) bool {
	g.mu.Lock()
	if g.stopping && item.External {
		g.mu.Unlock()
		return false
	}
	if item.External {
		g.external.PushBack(item)
	} else {
		g.continuations.PushBack(item)
	}
	g.mu.Unlock()

	if g.readyNotify != nil {
		g.readyNotify(g)
	}
	return true
}

// TryDequeue pops the next item this group is allowed to run right now,
// given whatever is already running, and marks it as running. It returns
// ok=false if no item is currently dispatchable (either the queues are
// empty, or every queued item conflicts with what is running).
func (g *Group) TryDequeue() (item WorkItem, runID uint64, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Continuations are tried first, under the same admit check as external
	// items: they belong to the call that is already running or just
	// finished. When the front continuation is not admitted, the external
	// queue is still scanned.
	if el := g.continuations.Front(); el != nil {
		wi := el.Value.(WorkItem)
		if g.admit(wi) {
			g.continuations.Remove(el)
			return g.markRunning(wi)
		}
	}

	for el := g.external.Front(); el != nil; el = el.Next() {
		wi := el.Value.(WorkItem)
		if g.admit(wi) {
			g.external.Remove(el)
			return g.markRunning(wi)
		}
		if g.policy.Mode == NonReentrant {
			// Non-reentrant activations process requests from the same
			// caller in delivery order; do not skip ahead in the queue.
			break
		}
	}
	return WorkItem{}, 0, false
}

// admit reports whether wi may start given the currently running set.
func (g *Group) admit(wi WorkItem) bool {
	if len(g.running) == 0 {
		return true
	}
	for _, running := range g.running {
		if !g.policy.allows(running, true, wi) {
			return false
		}
	}
	return true
}

func (g *Group) markRunning(wi WorkItem) (WorkItem, uint64, bool) {
	g.nextRunID++
	id := g.nextRunID
	g.running[id] = wi
	return wi, id, true
}

// Complete marks runID finished, freeing the concurrency slot it held.
func (g *Group) Complete(runID uint64) {
	g.mu.Lock()
	delete(g.running, runID)
	g.mu.Unlock()
	if g.readyNotify != nil {
		g.readyNotify(g)
	}
}

// HasWork reports whether the group has any queued or running work.
func (g *Group) HasWork() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.continuations.Len() > 0 || g.external.Len() > 0 || len(g.running) > 0
}

// BeginStop rejects further externally queued messages (callers should
// surface ErrDeactivating) while letting already-queued continuations
// drain.
func (g *Group) BeginStop() {
	g.mu.Lock()
	g.stopping = true
	g.mu.Unlock()
}

// Idle reports whether nothing is currently running (used to decide whether
// a non-reentrant message may be dequeued at all).
func (g *Group) Idle() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.running) == 0
}
