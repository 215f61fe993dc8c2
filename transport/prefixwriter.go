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

package transport

import "net"

// PrefixWriter emits a fixed-size header followed by a variable-length
// payload without double-copying: it reserves headerSize bytes of space up
// front, hands out successive spans for the caller to fill with payload
// bytes, then lets the caller fill the header and commits the whole frame
// to a sink in one call.
//
// As long as the payload fits within the hint given to Init, header and
// body share one pooled buffer and Complete costs zero additional
// allocation. A payload that exceeds the hint spills into additional
// pooled segments; Complete then commits every segment in order via
// net.Buffers, which writes them to the sink without copying the leading
// buffer (vectored I/O when the sink supports it).
type PrefixWriter struct {
	headerSize int
	pool       *framePool

	head       []byte
	bodyInHead int
	hint       int
	overflow   [][]byte
}

// NewPrefixWriter constructs a writer that reserves headerSize bytes ahead
// of every payload it frames.
func NewPrefixWriter(headerSize int) *PrefixWriter {
	return &PrefixWriter{headerSize: headerSize, pool: newFramePool()}
}

// Init prepares the writer for one frame, sized for a payload of
// approximately hint bytes. Must be called before GetSpan or Complete, and
// again before reusing the writer for a second frame.
func (w *PrefixWriter) Init(hint int) {
	if hint < 0 {
		hint = 0
	}
	w.hint = hint
	w.head = w.pool.Get(w.headerSize + hint)
	w.bodyInHead = 0
	w.overflow = w.overflow[:0]
}

// GetSpan returns the next n-byte span for the caller to write payload
// bytes into. Spans are handed out in the order they will appear in the
// committed frame.
func (w *PrefixWriter) GetSpan(n int) []byte {
	if n <= 0 {
		return nil
	}
	room := w.hint - w.bodyInHead
	if len(w.overflow) == 0 && room >= n {
		start := w.headerSize + w.bodyInHead
		span := w.head[start : start+n]
		w.bodyInHead += n
		return span
	}
	seg := w.pool.Get(n)
	w.overflow = append(w.overflow, seg)
	return seg
}

// Complete writes header (which must be exactly headerSize bytes) into the
// reserved space and returns the full frame as an ordered sequence of
// buffers ready to hand to net.Buffers.WriteTo or an equivalent sink.
// Call Release once the sink has consumed every buffer.
func (w *PrefixWriter) Complete(header []byte) net.Buffers {
	copy(w.head[:w.headerSize], header)
	bufs := make(net.Buffers, 0, 1+len(w.overflow))
	bufs = append(bufs, w.head[:w.headerSize+w.bodyInHead])
	bufs = append(bufs, w.overflow...)
	return bufs
}

// Release returns every buffer used by the most recently completed frame
// to the pool. Safe to call even if Complete was never reached.
func (w *PrefixWriter) Release() {
	if w.head != nil {
		w.pool.Put(w.head)
		w.head = nil
	}
	for _, seg := range w.overflow {
		w.pool.Put(seg)
	}
	w.overflow = w.overflow[:0]
}
