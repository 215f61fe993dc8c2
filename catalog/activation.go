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

// Package catalog implements the Activation Catalog: it creates, indexes,
// and destroys activations on the local silo. Creation is idempotent, and
// activations carry a deactivation reason that is surfaced in logs and, for
// certain reasons, prevents auto-reactivation for a cool-down (mirroring the
// teacher's passivation_manager.go idle/permanent distinction).
package catalog

import (
	"sync"
	"time"

	"github.com/meshgrain/silo/identity"
)

// DeactivationReason names why an activation was removed from the catalog.
type DeactivationReason int

const (
	// ReasonIdle: the activation passivated after an idle timeout.
	ReasonIdle DeactivationReason = iota
	// ReasonExplicit: the application or operator requested deactivation.
	ReasonExplicit
	// ReasonApplicationError: the grain's own code faulted.
	ReasonApplicationError
	// ReasonInconsistentState: a persistent-state write lost its etag race.
	ReasonInconsistentState
	// ReasonSiloShutdown: the hosting silo is shutting down.
	ReasonSiloShutdown
	// ReasonLostRace: this activation lost directory registration to a
	// concurrently created activation and must shut down.
	ReasonLostRace
)

func (r DeactivationReason) String() string {
	switch r {
	case ReasonIdle:
		return "Idle"
	case ReasonExplicit:
		return "Explicit"
	case ReasonApplicationError:
		return "ApplicationError"
	case ReasonInconsistentState:
		return "InconsistentState"
	case ReasonSiloShutdown:
		return "SiloShutdown"
	case ReasonLostRace:
		return "LostRace"
	default:
		return "Unknown"
	}
}

// CoolDownReasons names the deactivation reasons that block immediate
// reactivation of the same grain identity: application error and
// inconsistent state indicate the grain's own logic or persisted state is
// suspect, so the catalog backs off before trying again.
var CoolDownReasons = map[DeactivationReason]bool{
	ReasonApplicationError:  true,
	ReasonInconsistentState: true,
}

// Status is an activation's lifecycle state within the catalog.
type Status int

const (
	StatusActivating Status = iota
	StatusRunning
	StatusDeactivating
	StatusRemoved
)

// Activation is one in-memory instance of a grain hosted by this silo.
type Activation struct {
	Address      identity.ActivationAddress
	Instance     any
	CreatedAt    time.Time
	status       Status
	mu           sync.Mutex
	stopWindowAt time.Time
}

func newActivation(addr identity.ActivationAddress, instance any) *Activation {
	return &Activation{Address: addr, Instance: instance, CreatedAt: time.Now(), status: StatusActivating}
}

// Status returns the activation's current lifecycle state.
func (a *Activation) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Activation) setStatus(s Status) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

// BeginStopWindow marks the instant the activation started deactivating and
// its stop-window (grace period for already-queued continuations) began.
func (a *Activation) BeginStopWindow(window time.Duration) {
	a.mu.Lock()
	a.stopWindowAt = time.Now().Add(window)
	a.status = StatusDeactivating
	a.mu.Unlock()
}

// StopWindowExpired reports whether the stop-window grace period has
// elapsed; messages arriving after this must be rerouted via the directory
// to a fresh activation rather than delivered here.
func (a *Activation) StopWindowExpired() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.stopWindowAt.IsZero() && time.Now().After(a.stopWindowAt)
}
