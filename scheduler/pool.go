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
	"sync"

	gds "github.com/Workiva/go-datastructures/queue"
	"go.uber.org/atomic"

	"github.com/meshgrain/silo/log"
)

// Pool is the small, fixed pool of parallel worker goroutines: work items
// are grouped by activation, and distinct groups execute in parallel while a
// single group enforces its own reentrancy policy. Workers
// pull ready *Group handles from a shared queue rather than owning a group
// each, so the number of goroutines stays bounded regardless of how many
// activations exist.
type Pool struct {
	logger  log.Logger
	ready   *gds.Queue // of *Group
	quit    chan struct{}
	wg      sync.WaitGroup

	mu       sync.Mutex
	enqueued map[string]bool // group key -> already has a ready-marker in the queue

	processed atomic.Int64
}

// NewPool builds a Pool with the given number of worker goroutines.
func NewPool(workers int, logger log.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = log.DiscardLogger
	}
	p := &Pool{
		logger:   logger,
		ready:    gds.New(int64(workers * 4)),
		quit:     make(chan struct{}),
		enqueued: make(map[string]bool),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Notify marks g as having dispatchable work, scheduling a worker to visit
// it. It is safe to call from Group.Enqueue/Complete and may be called
// redundantly; duplicate notifications for a group already pending are
// coalesced.
func (p *Pool) Notify(g *Group) {
	p.mu.Lock()
	if p.enqueued[g.Key()] {
		p.mu.Unlock()
		return
	}
	p.enqueued[g.Key()] = true
	p.mu.Unlock()

	if err := p.ready.Put(g); err != nil {
		p.logger.Warnf("scheduler pool: queue closed, dropping notification for %s: %v", g.Key(), err)
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		items, err := p.ready.Get(1)
		if err != nil {
			return // queue disposed
		}
		g := items[0].(*Group)

		p.mu.Lock()
		delete(p.enqueued, g.Key())
		p.mu.Unlock()

		p.drainOnce(g)
	}
}

// drainOnce runs, one after another, every item the group currently admits.
// Before running each item it re-notifies the group, so another worker pass
// can pick up work the group admits alongside it (e.g. a reentrant message
// queued behind a still running one).
func (p *Pool) drainOnce(g *Group) {
	for {
		item, runID, ok := g.TryDequeue()
		if !ok {
			return
		}
		p.Notify(g)
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Errorf("scheduler: work item panicked in group %s: %v", g.Key(), r)
				}
				g.Complete(runID)
			}()
			item.Run()
		}()
		p.processed.Inc()
	}
}

// Processed returns the number of work items this pool has run to
// completion (or panic) since it started, for load reporting.
func (p *Pool) Processed() int64 {
	return p.processed.Load()
}

// Stop disposes the ready queue and waits for every worker to exit. Any
// group with work still queued after Stop is the caller's responsibility to
// drain directly (used during silo shutdown once new dispatch is no longer
// desired).
func (p *Pool) Stop() {
	p.ready.Dispose()
	p.wg.Wait()
}
