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

package scheduler_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meshgrain/silo/scheduler"
)

// TestExclusivityUnderNonReentrantLoad is Scenario 4: ten concurrent calls
// into a NonReentrant activation whose turn sleeps and toggles a flag must
// never observe two turns running at once.
func TestExclusivityUnderNonReentrantLoad(t *testing.T) {
	pool := scheduler.NewPool(4, nil)
	defer pool.Stop()

	var running int32
	var violations int32
	var wg sync.WaitGroup

	g := scheduler.NewGroup("grain/flag-toggle", scheduler.Policy{Mode: scheduler.NonReentrant}, pool.Notify)

	const n = 10
	wg.Add(n)
	for i := 0; i < n; i++ {
		g.Enqueue(scheduler.WorkItem{
			Kind:     scheduler.KindRequest,
			External: true,
			Run: func() {
				defer wg.Done()
				if atomic.AddInt32(&running, 1) != 1 {
					atomic.AddInt32(&violations, 1)
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
			},
		})
	}
	wg.Wait()

	require.Zero(t, atomic.LoadInt32(&violations))
}

// TestReentrantAllowsConcurrentExecution exercises the Scheduler exclusivity
// testable property in its positive form: Reentrant groups are explicitly
// allowed to run more than one turn at a time.
func TestReentrantAllowsConcurrentExecution(t *testing.T) {
	pool := scheduler.NewPool(8, nil)
	defer pool.Stop()

	var maxConcurrent int32
	var current int32
	var wg sync.WaitGroup

	g := scheduler.NewGroup("grain/fanout", scheduler.Policy{Mode: scheduler.Reentrant}, pool.Notify)

	const n = 6
	wg.Add(n)
	release := make(chan struct{})
	for i := 0; i < n; i++ {
		g.Enqueue(scheduler.WorkItem{
			Kind:     scheduler.KindRequest,
			External: true,
			Run: func() {
				defer wg.Done()
				c := atomic.AddInt32(&current, 1)
				for {
					old := atomic.LoadInt32(&maxConcurrent)
					if c <= old || atomic.CompareAndSwapInt32(&maxConcurrent, old, c) {
						break
					}
				}
				<-release
				atomic.AddInt32(&current, -1)
			},
		})
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&current) > 1
	}, time.Second, time.Millisecond)

	close(release)
	wg.Wait()
	require.Greater(t, atomic.LoadInt32(&maxConcurrent), int32(1))
}

// TestContinuationsRunBeforeNextExternalMessage asserts the ordering
// guarantee: a continuation posted by the running turn is dequeued ahead of
// any externally queued message still waiting.
func TestContinuationsRunBeforeNextExternalMessage(t *testing.T) {
	pool := scheduler.NewPool(2, nil)
	defer pool.Stop()

	var order []string
	var mu sync.Mutex
	record := func(label string) {
		mu.Lock()
		order = append(order, label)
		mu.Unlock()
	}

	var g *scheduler.Group
	var done sync.WaitGroup
	done.Add(2)

	g = scheduler.NewGroup("grain/chain", scheduler.Policy{Mode: scheduler.NonReentrant}, pool.Notify)
	g.Enqueue(scheduler.WorkItem{
		Kind:     scheduler.KindRequest,
		External: true,
		Run: func() {
			record("first")
			g.Enqueue(scheduler.WorkItem{
				Kind:     scheduler.KindContinuation,
				External: false,
				Run: func() {
					record("continuation")
					done.Done()
				},
			})
		},
	})
	g.Enqueue(scheduler.WorkItem{
		Kind:     scheduler.KindRequest,
		External: true,
		Run: func() {
			record("second")
			done.Done()
		},
	})

	done.Wait()
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "continuation", "second"}, order)
}
