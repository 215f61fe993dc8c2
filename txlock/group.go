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

import "time"

// lockGroup is a set of non-conflicting transaction records acquiring or
// releasing a grain's transactional state together. Groups form a
// singly-linked queue; the manager's head pointer names the group that
// currently holds the lock.
type lockGroup struct {
	entries   map[string]*record
	fillCount int
	deadline  time.Time
	deferred  []func()
	next      *lockGroup

	minTSCache time.Time
	minTSValid bool
}

func newLockGroup() *lockGroup {
	return &lockGroup{entries: make(map[string]*record)}
}

// empty reports whether the group holds no live records. fillCount is never
// decremented on removal, so a group can be logically empty while fillCount
// still reports its historical peak; emptiness is always judged from
// len(entries), never fillCount.
func (g *lockGroup) empty() bool {
	return len(g.entries) == 0
}

// hasRoom reports whether a brand-new transaction may still be admitted by
// fill count, independent of conflict.
func (g *lockGroup) hasRoom(maxGroupSize int) bool {
	return g.fillCount < maxGroupSize
}

// conflictsWithAny reports whether a transaction performing an access of
// kind isRead would conflict with any record currently in the group, using
// the plain structural conflict rule (no priority-based resolution).
func (g *lockGroup) conflictsWithAny(isRead bool) bool {
	for _, r := range g.entries {
		if conflicts(isRead, r.isRead) {
			return true
		}
	}
	return false
}

// insert adds rec to the group, bumping fillCount (never bumped back down).
func (g *lockGroup) insert(rec *record) {
	g.entries[rec.txID] = rec
	g.fillCount++
	g.minTSValid = false
}

// minPendingTimestamp returns the minimum priority timestamp among records
// still NotYetDetermined, using the cached value when valid (the lock-exit
// algorithm's first step). ok is false when there are no pending records,
// meaning every record in the group is already committable.
func (g *lockGroup) minPendingTimestamp() (ts time.Time, ok bool) {
	if g.minTSValid {
		return g.minTSCache, true
	}
	first := true
	for _, r := range g.entries {
		if r.role != NotYetDetermined {
			continue
		}
		if first || r.priority.Before(ts) {
			ts = r.priority
			first = false
		}
	}
	if first {
		g.minTSValid = false
		return time.Time{}, false
	}
	g.minTSCache = ts
	g.minTSValid = true
	return ts, true
}

// invalidateMinCache drops the cached minimum timestamp; called whenever a
// record's role or presence in the group changes.
func (g *lockGroup) invalidateMinCache() {
	g.minTSValid = false
}
