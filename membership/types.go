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

// Package membership implements the Membership Oracle: the shared, versioned
// roster of silos with liveness consensus. It maintains the membership table
// through a pluggable Backend, runs the heartbeat/probe/suspicion protocol,
// and exposes the table to callers (the grain directory's ownership ring,
// the placement director's eligible-silo set).
package membership

import (
	"time"

	"github.com/meshgrain/silo/address"
)

// Status is a silo's position in its lifecycle state machine.
type Status int

const (
	Created Status = iota
	Joining
	Active
	ShuttingDown
	Stopping
	Dead
)

func (s Status) String() string {
	switch s {
	case Created:
		return "Created"
	case Joining:
		return "Joining"
	case Active:
		return "Active"
	case ShuttingDown:
		return "ShuttingDown"
	case Stopping:
		return "Stopping"
	case Dead:
		return "Dead"
	default:
		return "Unknown"
	}
}

// rank gives the total order used by the membership-monotonicity invariant:
// Created < Joining < Active < ShuttingDown < Stopping < Dead.
func (s Status) rank() int { return int(s) }

// Precedes reports whether s is not-later-than other in the lifecycle order,
// allowing the monotonicity check `observed sequence is non-decreasing`.
func (s Status) Precedes(other Status) bool { return s.rank() <= other.rank() }

// Suspector records one peer's suspicion of a silo at a point in time.
type Suspector struct {
	Silo        address.Address
	SuspectedAt time.Time
}

// Entry is one row of the membership table.
type Entry struct {
	Silo          address.Address
	HostName      string
	Role          string
	Status        Status
	StartTime     time.Time
	IAmAliveTime  time.Time
	UpdateZone    string
	FaultZone     string
	Suspectors    []Suspector
}

// Clone returns a deep-enough copy safe to mutate independently of the
// original (Suspectors is copied; Entry itself is a value type otherwise).
func (e Entry) Clone() Entry {
	out := e
	out.Suspectors = append([]Suspector(nil), e.Suspectors...)
	return out
}

// Table is a versioned snapshot of the membership roster. Version is
// monotonically increasing across all successful updates; ETag is an opaque
// concurrency token the Backend uses for its own optimistic-concurrency
// check (its equality semantics are backend-specific; callers only ever
// round-trip it).
type Table struct {
	Entries []Entry
	Version uint64
	ETag    string
}

// ByAddress finds a row by silo address, returning (entry, true) if present.
func (t Table) ByAddress(a address.Address) (Entry, bool) {
	for _, e := range t.Entries {
		if e.Silo.Equal(a) {
			return e, true
		}
	}
	return Entry{}, false
}

// ActiveSilos returns the addresses of every row whose Status is Active.
func (t Table) ActiveSilos() []address.Address {
	out := make([]address.Address, 0, len(t.Entries))
	for _, e := range t.Entries {
		if e.Status == Active {
			out = append(out, e.Silo)
		}
	}
	return out
}
