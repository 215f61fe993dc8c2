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

// Package errors collects the sentinel failure signals the runtime passes
// around as structured values rather than as thrown exceptions, grouped by
// taxonomy: transient, routing, unrecoverable, application, consistency,
// transactional, and fatal.
package errors

import "errors"

// New is re-exported so callers that only need this package don't also
// import the standard errors package for trivial sentinel construction.
var New = errors.New

// Is is re-exported for convenience alongside the sentinels below.
var Is = errors.Is

// --- Transient: retry allowed -------------------------------------------------

var (
	// ErrGatewayTooBusy indicates the gateway is shedding load and the
	// caller should retry after a backoff.
	ErrGatewayTooBusy = errors.New("gateway too busy")
	// ErrOverloaded indicates the target silo is overloaded.
	ErrOverloaded = errors.New("silo overloaded")
	// ErrTimeout indicates a request's absolute expiry was reached before
	// a response, rejection, or other terminal event occurred.
	ErrTimeout = errors.New("request timed out")
	// ErrMembershipContention indicates an optimistic-concurrency write to
	// the membership table lost a race and must be retried with a fresh
	// read.
	ErrMembershipContention = errors.New("membership table update lost optimistic concurrency race")
)

// --- Routing: retry after cache invalidation ----------------------------------

var (
	// ErrStaleActivation indicates the addressed activation no longer
	// exists; the directory cache entry that produced the address is
	// stale and must be invalidated before retrying.
	ErrStaleActivation = errors.New("activation is stale")
	// ErrCacheInvalidation is a side-effect-only rejection: it carries no
	// payload for the caller and exists purely to drop stale directory
	// cache entries.
	ErrCacheInvalidation = errors.New("cache invalidation")
)

// --- Unrecoverable request: surfaced to caller --------------------------------

var (
	// ErrDuplicateRequest indicates the correlation id was already seen
	// and the duplicate is ignored.
	ErrDuplicateRequest = errors.New("duplicate request")
	// ErrUnsupportedRequest indicates the target grain does not support
	// the requested interface/method.
	ErrUnsupportedRequest = errors.New("unsupported request")
)

// --- Consistency ---------------------------------------------------------------

var (
	// ErrInconsistentState indicates a persistent-state write lost its
	// etag race. It may trigger auto-deactivation of the activation that
	// issued the write, but must never be used to deactivate peers.
	ErrInconsistentState = errors.New("inconsistent persistent state")
)

// --- Transactional ---------------------------------------------------------------

var (
	// ErrBrokenLock indicates a transaction's recorded access count does
	// not match the lock group's bookkeeping, or the transaction could
	// not be located in any group where it was expected.
	ErrBrokenLock = errors.New("broken lock")
	// ErrLockValidationFailed indicates the current head group's state
	// changed between a transaction entering the lock and validating it.
	ErrLockValidationFailed = errors.New("lock validation failed")
	// ErrLockUpgrade indicates a conflicting transaction could not be
	// resolved by priority and the entering transaction must abort.
	ErrLockUpgrade = errors.New("lock upgrade conflict could not be resolved")
	// ErrLockDeadlineExceeded indicates a lock group's deadline passed
	// while a participant was still undetermined.
	ErrLockDeadlineExceeded = errors.New("lock group deadline exceeded")
	// ErrTransactionAborted indicates a transaction was rolled back,
	// either explicitly or as a side effect of a higher-priority
	// transaction's conflict resolution.
	ErrTransactionAborted = errors.New("transaction aborted")
)

// --- Fatal: drop the connection ----------------------------------------------

var (
	// ErrClusterIDMismatch indicates the preamble exchanged at connection
	// setup carried a cluster id that does not match the local silo's.
	ErrClusterIDMismatch = errors.New("cluster id mismatch")
	// ErrProtocolVersionMismatch indicates the peer speaks an
	// incompatible wire protocol version.
	ErrProtocolVersionMismatch = errors.New("protocol version mismatch")
)

// --- Directory / catalog / placement -------------------------------------------

var (
	// ErrActivationNotFound indicates no activation exists locally for
	// the requested address.
	ErrActivationNotFound = errors.New("activation not found")
	// ErrGrainNotRegistered indicates the grain type has no registered
	// factory on this silo.
	ErrGrainNotRegistered = errors.New("grain type not registered")
	// ErrActivationFailed indicates OnActivate returned an error; the
	// partially created activation must be removed from the catalog.
	ErrActivationFailed = errors.New("activation failed")
	// ErrNoEligibleSilo indicates a placement strategy found no silo
	// eligible to host a new activation.
	ErrNoEligibleSilo = errors.New("no eligible silo for placement")
	// ErrDeactivating indicates the activation is mid-deactivation and
	// rejects new externally queued messages retryably.
	ErrDeactivating = errors.New("activation is deactivating")
	// ErrMaxRetriesExceeded indicates a retryable rejection's retry count
	// exceeded the configured maximum and the failure is now permanent.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	// ErrMembershipRowAbsent signals an optimistic update whose target row
	// the backend reports as wholly absent. The in-memory backend refuses
	// to mutate it rather than silently treating it as version 0; see
	// membership.Backend docs.
	ErrMembershipRowAbsent = errors.New("membership table row not present for update")
)
