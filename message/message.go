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

// Package message defines the wire-level Message header and body carried
// between the Router, Scheduler and Connection Manager.
package message

import (
	"time"

	"github.com/meshgrain/silo/address"
	"github.com/meshgrain/silo/identity"
)

// Direction distinguishes the three message shapes the router handles.
type Direction int

const (
	Request Direction = iota
	Response
	OneWay
)

// RejectionKind enumerates the rejection taxonomy. A zero value means "not
// a rejection".
type RejectionKind int

const (
	NoRejection RejectionKind = iota
	RejectionTransient
	RejectionUnrecoverable
	RejectionGatewayTooBusy
	RejectionCacheInvalidation
	RejectionDuplicateRequest
)

// Retryable reports whether a rejection of this kind should be retried by
// the router rather than surfaced to the caller as a terminal failure.
func (k RejectionKind) Retryable() bool {
	switch k {
	case RejectionTransient, RejectionUnrecoverable, RejectionGatewayTooBusy:
		return true
	default:
		return false
	}
}

// InvalidatesCache reports whether receiving this rejection should drop the
// sender's cached directory entry for the target grain.
func (k RejectionKind) InvalidatesCache() bool {
	return k == RejectionUnrecoverable || k == RejectionCacheInvalidation
}

// Header carries everything the router and connection manager need to
// address, correlate, expire and retry a message without inspecting its
// body.
type Header struct {
	SendingGrain identity.GrainIdentity
	TargetGrain  identity.GrainIdentity
	SendingSilo  address.Address
	TargetSilo   address.Address

	CorrelationID string
	Direction     Direction

	InterfaceType    string
	InterfaceVersion uint32

	Expiry     time.Time
	RetryCount int

	CacheInvalidation []identity.GrainIdentity
	RequestContext    map[string]string

	Rejection RejectionKind
}

// Expired reports whether now is at or past the header's expiry.
func (h Header) Expired(now time.Time) bool {
	return !h.Expiry.IsZero() && !now.Before(h.Expiry)
}

// Message is the unit the Router and Connection Manager exchange: a header
// plus an opaque body (an invokable request payload or a response payload).
type Message struct {
	Header Header
	Body   any
}

// IsOneWay reports whether this message expects no response and should be
// silently dropped rather than surfaced as a timeout on expiry.
func (m Message) IsOneWay() bool {
	return m.Header.Direction == OneWay
}
