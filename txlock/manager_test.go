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

package txlock_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/meshgrain/silo/errors"
	"github.com/meshgrain/silo/txlock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeWaiter struct {
	mu       sync.Mutex
	acquired bool
	aborted  error
	done     chan struct{}
}

func newFakeWaiter() *fakeWaiter {
	return &fakeWaiter{done: make(chan struct{}, 1)}
}

func (w *fakeWaiter) Acquired() {
	w.mu.Lock()
	w.acquired = true
	w.mu.Unlock()
	w.done <- struct{}{}
}

func (w *fakeWaiter) Aborted(err error) {
	w.mu.Lock()
	w.aborted = err
	w.mu.Unlock()
	w.done <- struct{}{}
}

func (w *fakeWaiter) waitAcquired(t *testing.T) {
	t.Helper()
	select {
	case <-w.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for waiter callback")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	require.True(t, w.acquired, "expected Acquired, got aborted=%v", w.aborted)
}

type exitedTx struct {
	txID string
	role txlock.Role
}

type fakeQueue struct {
	mu      sync.Mutex
	entries []exitedTx
}

func (q *fakeQueue) Enqueue(txID string, role txlock.Role, _ time.Time) {
	q.mu.Lock()
	q.entries = append(q.entries, exitedTx{txID, role})
	q.mu.Unlock()
}

func (q *fakeQueue) snapshot() []exitedTx {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]exitedTx, len(q.entries))
	copy(out, q.entries)
	return out
}

func newTestManager(queue txlock.CommitQueue) *txlock.Manager {
	cfg := txlock.DefaultConfig()
	cfg.TickInterval = 5 * time.Millisecond
	cfg.GroupDeadline = time.Second
	m := txlock.New(cfg, queue, nil)
	m.Start()
	return m
}

func TestEnter_NonConflictingReadsShareHeadGroup(t *testing.T) {
	m := newTestManager(nil)
	defer m.Stop()

	w1, w2 := newFakeWaiter(), newFakeWaiter()
	require.NoError(t, m.Enter("tx1", time.Now(), 1, true, w1))
	require.NoError(t, m.Enter("tx2", time.Now(), 1, true, w2))

	w1.waitAcquired(t)
	w2.waitAcquired(t)
}

func TestEnter_ConflictingWritersOccupySeparateGroups(t *testing.T) {
	queue := &fakeQueue{}
	m := newTestManager(queue)
	defer m.Stop()

	w1, w2 := newFakeWaiter(), newFakeWaiter()
	now := time.Now()
	require.NoError(t, m.Enter("writer-1", now, 1, false, w1))
	w1.waitAcquired(t)

	require.NoError(t, m.Enter("writer-2", now.Add(time.Millisecond), 1, false, w2))

	select {
	case <-w2.done:
		t.Fatal("writer-2 should not acquire while writer-1 holds the head group")
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, m.SetRole("writer-1", txlock.LocalCommit, now))

	w2.waitAcquired(t)
	require.Eventually(t, func() bool {
		snap := queue.snapshot()
		return len(snap) == 1 && snap[0].txID == "writer-1"
	}, time.Second, 5*time.Millisecond)
}

func TestValidate_BrokenLockForUnknownTransaction(t *testing.T) {
	m := newTestManager(nil)
	defer m.Stop()

	_, err := m.Validate("ghost", 1)
	require.ErrorIs(t, err, errors.ErrBrokenLock)
}

func TestValidate_AccessCountMismatchFailsValidation(t *testing.T) {
	m := newTestManager(nil)
	defer m.Stop()

	w := newFakeWaiter()
	require.NoError(t, m.Enter("tx1", time.Now(), 1, true, w))
	w.waitAcquired(t)

	_, err := m.Validate("tx1", 2)
	require.ErrorIs(t, err, errors.ErrLockValidationFailed)

	_, err = m.Validate("tx1", 1)
	require.ErrorIs(t, err, errors.ErrBrokenLock)
}

func TestEnter_NewTransactionPlacementNeverRollsBackSiblings(t *testing.T) {
	m := newTestManager(nil)
	defer m.Stop()

	now := time.Now()
	reader := newFakeWaiter()
	writer := newFakeWaiter()

	require.NoError(t, m.Enter("reader", now.Add(5*time.Millisecond), 1, true, reader))
	reader.waitAcquired(t)
	require.NoError(t, m.Enter("writer", now, 1, false, writer))

	select {
	case <-writer.done:
		t.Fatal("writer should not have joined the head group yet: structural conflict with reader")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestEnter_UpgradeResolvesByPriorityAndAbortsLoserSibling(t *testing.T) {
	m := newTestManager(nil)
	defer m.Stop()

	t0 := time.Now()
	waitA1, waitB1, waitA2 := newFakeWaiter(), newFakeWaiter(), newFakeWaiter()

	require.NoError(t, m.Enter("txA", t0, 1, true, waitA1))
	waitA1.waitAcquired(t)
	require.NoError(t, m.Enter("txB", t0.Add(time.Millisecond), 1, true, waitB1))
	waitB1.waitAcquired(t)

	// txA upgrades from a read to a write access with its original,
	// earlier priority timestamp: it outranks txB, so txB is rolled back.
	require.NoError(t, m.Enter("txA", t0, 1, false, waitA2))
	waitA2.waitAcquired(t)

	select {
	case <-waitB1.done:
	case <-time.After(time.Second):
		t.Fatal("expected txB to be aborted by txA's higher-priority upgrade")
	}
	waitB1.mu.Lock()
	require.ErrorIs(t, waitB1.aborted, errors.ErrTransactionAborted)
	waitB1.mu.Unlock()
}

func TestEnter_UpgradeFailsWhenConflictingSiblingHasHigherPriority(t *testing.T) {
	m := newTestManager(nil)
	defer m.Stop()

	t0 := time.Now()
	waitA1, waitB1 := newFakeWaiter(), newFakeWaiter()

	require.NoError(t, m.Enter("txA", t0.Add(time.Millisecond), 1, true, waitA1))
	waitA1.waitAcquired(t)
	require.NoError(t, m.Enter("txB", t0, 1, true, waitB1))
	waitB1.waitAcquired(t)

	// txA's priority is later (lower rank) than txB's, so txA cannot force
	// an upgrade through a write/read conflict with txB.
	err := m.Enter("txA", t0.Add(time.Millisecond), 1, false, newFakeWaiter())
	require.ErrorIs(t, err, errors.ErrLockUpgrade)
}

func TestRollback_RemovesRecordAndAllowsGroupToAdvance(t *testing.T) {
	queue := &fakeQueue{}
	m := newTestManager(queue)
	defer m.Stop()

	now := time.Now()
	w1, w2 := newFakeWaiter(), newFakeWaiter()
	require.NoError(t, m.Enter("writer-1", now, 1, false, w1))
	w1.waitAcquired(t)
	require.NoError(t, m.Enter("writer-2", now.Add(time.Millisecond), 1, false, w2))

	m.Rollback("writer-1", true)

	w2.waitAcquired(t)
}

func TestAbortAll_MarksHeadGroupRecordsAbortedAndReleasesThem(t *testing.T) {
	queue := &fakeQueue{}
	m := newTestManager(queue)
	defer m.Stop()

	w := newFakeWaiter()
	require.NoError(t, m.Enter("tx1", time.Now(), 1, true, w))
	w.waitAcquired(t)

	m.AbortAll(errors.ErrTransactionAborted)

	require.Eventually(t, func() bool {
		snap := queue.snapshot()
		return len(snap) == 1 && snap[0].txID == "tx1" && snap[0].role == txlock.Abort
	}, time.Second, 5*time.Millisecond)
}
