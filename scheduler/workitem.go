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

package scheduler

// Kind distinguishes the origin of a work item, used only for observability;
// all kinds are scheduled identically.
type Kind int

const (
	KindRequest Kind = iota
	KindContinuation
	KindTimer
)

// WorkItem is one unit of work queued on an activation's scheduler group: an
// incoming request, a continuation posted by a currently running turn, or a
// fired timer.
type WorkItem struct {
	Kind               Kind
	RootCorrelationID  string
	Run                func()
	// External is true for messages delivered from outside the
	// activation (requests); false for continuations posted by the
	// currently running turn. Continuations always run before the next
	// external item.
	External bool
}
