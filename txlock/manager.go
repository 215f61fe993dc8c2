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

package txlock

import (
	"sync"
	"time"

	"github.com/meshgrain/silo/errors"
	"github.com/meshgrain/silo/log"
)

// Config tunes one Manager's group sizing and deadline behavior.
type Config struct {
	MaxGroupSize  int
	GroupDeadline time.Duration
	TickInterval  time.Duration
}

// DefaultConfig returns sane defaults for a single grain's lock manager.
func DefaultConfig() Config {
	return Config{
		MaxGroupSize:  8,
		GroupDeadline: 5 * time.Second,
		TickInterval:  50 * time.Millisecond,
	}
}

// Manager is the per-grain Transactional Lock Manager. It owns a linked
// list of LockGroups; only the head group holds the lock.
type Manager struct {
	cfg    Config
	queue  CommitQueue
	logger log.Logger

	mu   sync.Mutex
	head *lockGroup

	wake  chan struct{}
	stop  chan struct{}
	wg    sync.WaitGroup
}

// New constructs a Manager for one grain. Start must be called to launch
// the background lock-exit worker.
func New(cfg Config, queue CommitQueue, logger log.Logger) *Manager {
	if cfg.MaxGroupSize <= 0 {
		cfg.MaxGroupSize = 8
	}
	if cfg.GroupDeadline <= 0 {
		cfg.GroupDeadline = 5 * time.Second
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 50 * time.Millisecond
	}
	if logger == nil {
		logger = log.DiscardLogger
	}
	head := newLockGroup()
	head.deadline = time.Now().Add(cfg.GroupDeadline)
	return &Manager{
		cfg:    cfg,
		queue:  queue,
		logger: logger,
		head:   head,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
}

// Start launches the lock-exit worker goroutine.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.exitLoop()
}

// Stop halts the lock-exit worker.
func (m *Manager) Stop() {
	close(m.stop)
	m.wg.Wait()
}

func (m *Manager) notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// findGroup locates the group currently holding txID's record, if any.
func (m *Manager) findGroup(txID string) (*lockGroup, *record) {
	for g := m.head; g != nil; g = g.next {
		if r, ok := g.entries[txID]; ok {
			return g, r
		}
	}
	return nil, nil
}

// Enter places txID's record in a LockGroup and arranges for
// waiter.Acquired to fire once that group becomes the head group
// (immediately, if it already is).
func (m *Manager) Enter(txID string, priority time.Time, accessCount int, isRead bool, waiter Waiter) error {
	m.mu.Lock()

	if g, r := m.findGroup(txID); r != nil {
		if r.accessCount != accessCount {
			m.mu.Unlock()
			return errors.ErrBrokenLock
		}
		if err := m.resolveUpgrade(g, r, priority, isRead); err != nil {
			m.mu.Unlock()
			return err
		}
		g.invalidateMinCache()
		isHead := g == m.head
		m.mu.Unlock()
		if isHead {
			waiter.Acquired()
		}
		return nil
	}

	// Brand-new transaction: find the earliest group with room whose
	// members structurally do not conflict with this access. No
	// priority-based rollback happens at placement time — a fresh
	// transaction never has a stake to force ahead of one already
	// admitted; it simply looks further down the chain, or opens a new
	// tail group.
	var target *lockGroup
	for g := m.head; g != nil; g = g.next {
		if g.hasRoom(m.cfg.MaxGroupSize) && !g.conflictsWithAny(isRead) {
			target = g
			break
		}
		if g.next == nil {
			tail := newLockGroup()
			g.next = tail
		}
	}
	if target == nil {
		// every existing group was full or conflicting; the loop above
		// always appends a fresh tail, so walk to it.
		target = m.head
		for target.next != nil {
			target = target.next
		}
	}

	rec := &record{
		txID:        txID,
		priority:    priority,
		accessCount: accessCount,
		isRead:      isRead,
		role:        NotYetDetermined,
		waiter:      waiter,
	}
	target.insert(rec)
	isHead := target == m.head
	if !isHead {
		target.deferred = append(target.deferred, waiter.Acquired)
	}
	m.mu.Unlock()

	if isHead {
		waiter.Acquired()
	}
	return nil
}

// resolveUpgrade implements the "check conflicts within the group" branch
// of enter for a transaction re-entering with a new access kind on a grain
// it already holds a record for (e.g. upgrading from read to write). Unlike
// initial placement, this uses real priorities: a conflicting sibling is
// rolled back only if rec's priority is strictly earlier (higher priority)
// than every sibling it conflicts with.
func (m *Manager) resolveUpgrade(g *lockGroup, rec *record, priority time.Time, isRead bool) error {
	if rec.isRead == isRead {
		rec.priority = priority
		return nil
	}

	var conflicting []*record
	for _, other := range g.entries {
		if other.txID == rec.txID {
			continue
		}
		if conflicts(isRead, other.isRead) {
			conflicting = append(conflicting, other)
		}
	}
	for _, other := range conflicting {
		if !priority.Before(other.priority) {
			return errors.ErrLockUpgrade
		}
	}
	for _, other := range conflicting {
		delete(g.entries, other.txID)
		if other.waiter != nil {
			w := other.waiter
			go w.Aborted(errors.ErrTransactionAborted)
		}
	}
	rec.isRead = isRead
	rec.priority = priority
	return nil
}

// Validate checks that the current (head) group contains txID with a
// matching accessCount.
func (m *Manager) Validate(txID string, accessCount int) (Role, error) {
	m.mu.Lock()
	r, ok := m.head.entries[txID]
	if !ok {
		if _, later := m.findGroup(txID); later != nil {
			m.mu.Unlock()
			m.Rollback(txID, true)
			return 0, errors.ErrLockValidationFailed
		}
		m.mu.Unlock()
		return 0, errors.ErrBrokenLock
	}
	if r.accessCount != accessCount {
		delete(m.head.entries, txID)
		m.head.invalidateMinCache()
		m.mu.Unlock()
		return 0, errors.ErrLockValidationFailed
	}
	role := r.role
	m.mu.Unlock()
	return role, nil
}

// SetRole records txID's determined commit role and timestamp, making it
// eligible for release by the lock-exit algorithm once its timestamp is the
// minimum among still-pending siblings in its group.
func (m *Manager) SetRole(txID string, role Role, commitTimestamp time.Time) error {
	m.mu.Lock()
	g, r := m.findGroup(txID)
	if r == nil {
		m.mu.Unlock()
		return errors.ErrBrokenLock
	}
	r.role = role
	r.commitTS = commitTimestamp
	g.invalidateMinCache()
	m.mu.Unlock()
	m.notify()
	return nil
}

// Rollback removes txID's record from whichever group holds it. notify
// controls whether the lock-exit worker is woken immediately to re-check
// for an empty head group.
func (m *Manager) Rollback(txID string, notify bool) {
	m.mu.Lock()
	for g := m.head; g != nil; g = g.next {
		if _, ok := g.entries[txID]; ok {
			delete(g.entries, txID)
			g.invalidateMinCache()
			break
		}
	}
	m.mu.Unlock()
	if notify {
		m.notify()
	}
}

// AbortAll marks every record currently in the head group as Abort. The
// caller typically invokes this on an unrecoverable fault (e.g. the
// transaction coordinator crashed) rather than on an ordinary
// per-transaction failure, which should use Rollback instead.
func (m *Manager) AbortAll(cause error) {
	m.mu.Lock()
	for _, r := range m.head.entries {
		r.role = Abort
	}
	m.head.invalidateMinCache()
	m.mu.Unlock()
	m.logger.Warnf("txlock: aborted all transactions in head group: %v", cause)
	m.notify()
}

func (m *Manager) exitLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-m.wake:
			m.tick()
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick runs one pass of the lock-exit algorithm. Waiter callbacks are
// collected while the lock is held and invoked only after it is released,
// so a waiter that re-enters the Manager from its own callback cannot
// deadlock against tick's own lock.
func (m *Manager) tick() {
	m.mu.Lock()

	var exiting []*record
	var advanced []func()

	head := m.head
	now := time.Now()

	if !head.empty() {
		minTS, havePending := head.minPendingTimestamp()

		for id, r := range head.entries {
			if !r.role.Committable() {
				continue
			}
			if havePending && !r.priority.Before(minTS) {
				continue
			}
			exiting = append(exiting, r)
			delete(head.entries, id)
		}
		if len(exiting) > 0 {
			head.invalidateMinCache()
			sortByTimestamp(exiting)
		}

		if !head.deadline.IsZero() && now.After(head.deadline) {
			for _, r := range head.entries {
				if !r.role.Committable() {
					r.role = Abort
				}
			}
			head.invalidateMinCache()
		}
	} else if head.next != nil {
		m.head = head.next
		m.head.deadline = now.Add(m.cfg.GroupDeadline)
		advanced = m.head.deferred
		m.head.deferred = nil
	}

	m.mu.Unlock()

	for _, r := range exiting {
		if m.queue != nil {
			m.queue.Enqueue(r.txID, r.role, r.commitTS)
		}
	}
	for _, fn := range advanced {
		fn()
	}
}

func sortByTimestamp(recs []*record) {
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && recs[j].commitTS.Before(recs[j-1].commitTS); j-- {
			recs[j], recs[j-1] = recs[j-1], recs[j]
		}
	}
}
