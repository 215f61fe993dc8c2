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

// Package txlock implements the Transactional Lock Manager: one instance
// guards one grain's transactional state, ordering concurrent transactions
// into LockGroups so that non-conflicting transactions can proceed together
// while conflicting ones are serialized by priority.
package txlock

import "time"

// Role is a transaction's commit role within a LockGroup.
type Role int

const (
	// NotYetDetermined is the role every record starts with: the exit
	// algorithm may not release it from its group until this changes.
	NotYetDetermined Role = iota
	// LocalCommit means this transaction commits on the silo hosting this
	// grain without needing a distributed two-phase protocol.
	LocalCommit
	// RemoteCommit means this transaction's commit outcome is driven by a
	// remote coordinator.
	RemoteCommit
	// ReadOnly means this transaction only read this grain's state and
	// needs no commit step here.
	ReadOnly
	// Abort means this transaction's participation here has been broken,
	// either by rollback, conflict resolution, or abortAll.
	Abort
)

// String renders Role for logging.
func (r Role) String() string {
	switch r {
	case NotYetDetermined:
		return "NotYetDetermined"
	case LocalCommit:
		return "LocalCommit"
	case RemoteCommit:
		return "RemoteCommit"
	case ReadOnly:
		return "ReadOnly"
	case Abort:
		return "Abort"
	default:
		return "Unknown"
	}
}

// Committable reports whether the exit algorithm may consider this role's
// record for release: anything other than NotYetDetermined.
func (r Role) Committable() bool {
	return r != NotYetDetermined
}

// Waiter receives the lock events for one Enter call: Acquired fires once
// the transaction's group becomes the head group and it may proceed to read
// or write the grain's state; Aborted fires when a higher-priority sibling's
// read-to-write upgrade rolls the transaction's record back, which can
// happen after Acquired has already fired. This follows
// message.CompletionSink's callback shape, with an acquire/abort pair in
// place of a response/reject/timeout triad.
type Waiter interface {
	Acquired()
	Aborted(err error)
}

// CommitQueue receives transactions as the exit algorithm releases them
// from the head group, in non-decreasing commit-timestamp order, ready for
// the caller's two-phase commit protocol.
type CommitQueue interface {
	Enqueue(txID string, role Role, commitTimestamp time.Time)
}

// record is one transaction's bookkeeping within a single LockGroup.
type record struct {
	txID        string
	priority    time.Time
	accessCount int
	isRead      bool
	role        Role
	commitTS    time.Time
	waiter      Waiter
}

// conflicts reports whether a and b, held concurrently in the same group,
// violate the conflict rule: a read conflicts only with a concurrent
// writer; two writers always conflict.
func conflicts(aIsRead, bIsRead bool) bool {
	return !(aIsRead && bIsRead)
}
