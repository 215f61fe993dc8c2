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

// Package scheduler implements the Activation Scheduler: a per-activation
// cooperative work queue that guarantees exactly one work item executes at a
// time per activation, subject to a configurable reentrancy policy.
// Continuations posted from within a running work item re-enqueue on the
// same group and run before the next externally queued message, unless that
// message is itself reentrant-eligible.
package scheduler

// ReentrancyMode enumerates the per-grain-type reentrancy policies.
type ReentrancyMode int

const (
	// NonReentrant is the default: a message is dequeued only when the
	// activation is idle.
	NonReentrant ReentrancyMode = iota
	// Reentrant allows any pending message to interleave with the one
	// currently executing.
	Reentrant
	// MayInterleavePredicate defers the decision to a per-message
	// user predicate.
	MayInterleavePredicate
	// CallChainReentrant allows a message belonging to the same logical
	// call chain (same root correlation id) as the running item to
	// interleave; others may not.
	CallChainReentrant
)

// Predicate decides, for MayInterleavePredicate mode, whether a pending item
// may interleave with the currently running one.
type Predicate func(item WorkItem) bool

// Policy bundles a ReentrancyMode with the extra data modes other than
// NonReentrant and Reentrant need to make their decision.
type Policy struct {
	Mode      ReentrancyMode
	MayInterleave Predicate // used when Mode == MayInterleavePredicate
}

// allows reports whether pending may run concurrently with running, given
// this policy. When runningActive is false (nothing currently executing),
// anything is allowed.
func (p Policy) allows(running WorkItem, runningActive bool, pending WorkItem) bool {
	if !runningActive {
		return true
	}
	switch p.Mode {
	case Reentrant:
		return true
	case MayInterleavePredicate:
		if p.MayInterleave == nil {
			return false
		}
		return p.MayInterleave(pending)
	case CallChainReentrant:
		return running.RootCorrelationID != "" && running.RootCorrelationID == pending.RootCorrelationID
	default: // NonReentrant
		return false
	}
}
