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

// Package transport implements the Connection Manager: long-lived
// silo-to-silo and gateway-to-client connections carrying handshake-framed,
// length-prefixed messages.
package transport

import "sync"

// framePool maintains a set of sync.Pool instances bucketed by power-of-two
// size, avoiding a fresh []byte allocation for every frame read or written.
// Bucket boundaries run from 256 B to 4 MiB.
type framePool struct {
	pools [numBuckets]sync.Pool
}

const (
	minBucketShift = 8  // 256 B
	maxBucketShift = 22 // 4 MiB
	numBuckets     = maxBucketShift - minBucketShift + 1
)

func newFramePool() *framePool {
	fp := &framePool{}
	for i := range fp.pools {
		size := 1 << (minBucketShift + i)
		fp.pools[i] = sync.Pool{
			New: func() any {
				buf := make([]byte, size)
				return &buf
			},
		}
	}
	return fp
}

// Get returns a []byte of exactly n bytes drawn from the smallest bucket
// that satisfies the request. Oversized requests allocate directly.
func (fp *framePool) Get(n int) []byte {
	idx := bucketIndex(n)
	if idx >= numBuckets {
		return make([]byte, n)
	}
	bp := fp.pools[idx].Get().(*[]byte)
	buf := *bp
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	return buf[:n]
}

// Put returns buf to its bucket. Buffers whose capacity does not match an
// exact bucket boundary are dropped for GC collection.
func (fp *framePool) Put(buf []byte) {
	c := cap(buf)
	idx := bucketIndexExact(c)
	if idx < 0 || idx >= numBuckets {
		return
	}
	buf = buf[:c]
	fp.pools[idx].Put(&buf)
}

func bucketIndex(n int) int {
	if n <= 1<<minBucketShift {
		return 0
	}
	shift := 0
	v := n - 1
	for v > 0 {
		v >>= 1
		shift++
	}
	idx := shift - minBucketShift
	if idx >= numBuckets {
		return numBuckets
	}
	return idx
}

func bucketIndexExact(c int) int {
	if c == 0 || c&(c-1) != 0 {
		return -1
	}
	shift := 0
	v := c
	for v > 1 {
		v >>= 1
		shift++
	}
	idx := shift - minBucketShift
	if idx < 0 || idx >= numBuckets {
		return -1
	}
	return idx
}
