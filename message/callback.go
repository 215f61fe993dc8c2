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

package message

import (
	"time"

	"github.com/meshgrain/silo/identity"
)

// CompletionSink receives the terminal event for one outstanding request:
// exactly one of a response message, a rejection, or a timeout.
type CompletionSink interface {
	Complete(resp Message)
	Reject(kind RejectionKind, err error)
	Timeout()
}

// Callback is the bookkeeping record created for every outbound request and
// removed on response, timeout, or detected failure of the target silo.
type Callback struct {
	CorrelationID string
	SendingGrain  identity.GrainIdentity
	TargetGrain   identity.GrainIdentity
	Request       Message
	Expiry        time.Time
	Sink          CompletionSink
}

// Expired reports whether this callback's deadline has passed.
func (c *Callback) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}
