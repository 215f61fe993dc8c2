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

// Package stream implements the stream/queue cache adapter: a
// chronological, per-stream message buffer with cursor-based consumption
// and cache-pressure feedback.
package stream

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Position addresses one message within a stream: a monotonically
// increasing sequence number assigned at enqueue time.
type Position uint64

// Message is one payload enqueued onto a stream.
type Message struct {
	StreamID   string
	Payload    []byte
	Position   Position
	EnqueuedAt time.Time
}

// Cursor names a read position within a stream, opaque to callers beyond
// equality and the sequence token it was minted from.
type Cursor struct {
	StreamID string
	Position Position
}

type entry struct {
	message    Message
	lastAccess time.Time
}

// Cache is the stream/queue cache adapter.
type Cache struct {
	mu       sync.Mutex
	streams  map[string][]*entry
	nextPos  map[string]Position
	expiry   time.Duration
	pressure int32 // not read or written by any method; IsUnderPressure counts buffered entries

	stopChan chan struct{}
	stopOnce sync.Once
	started  bool
}

// NewCache builds a Cache whose entries are evicted once their enqueue
// timestamp is older than expiry, whether or not they have been read.
func NewCache(expiry time.Duration) *Cache {
	return &Cache{
		streams:  make(map[string][]*entry),
		nextPos:  make(map[string]Position),
		expiry:   expiry,
		stopChan: make(chan struct{}),
	}
}

// Start launches the background chronological-eviction loop.
func (c *Cache) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()
	go c.expireLoop(ctx)
}

// Stop halts the eviction loop.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

// AddMessages appends batch to their respective streams, stamping each
// with dequeueTime as its enqueue timestamp and a freshly minted Position,
// and returns the position assigned to each message in order.
func (c *Cache) AddMessages(batch []Message, dequeueTime time.Time) []Position {
	c.mu.Lock()
	defer c.mu.Unlock()

	positions := make([]Position, len(batch))
	for i, msg := range batch {
		pos := c.nextPos[msg.StreamID]
		msg.Position = pos
		msg.EnqueuedAt = dequeueTime
		c.nextPos[msg.StreamID] = pos + 1
		c.streams[msg.StreamID] = append(c.streams[msg.StreamID], &entry{message: msg, lastAccess: dequeueTime})
		positions[i] = pos
	}
	return positions
}

// GetCursor mints a Cursor for streamID positioned at sequenceToken, the
// position of the next message a consumer wants delivered.
func (c *Cache) GetCursor(streamID string, sequenceToken Position) Cursor {
	return Cursor{StreamID: streamID, Position: sequenceToken}
}

// TryGetNext returns the next batch of messages at or after cursor's
// position, or ok=false when nothing new has arrived yet.
func (c *Cache) TryGetNext(cursor Cursor) (batch []Message, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.streams[cursor.StreamID]
	if len(entries) == 0 {
		return nil, false
	}
	idx := sort.Search(len(entries), func(i int) bool { return entries[i].message.Position >= cursor.Position })
	if idx >= len(entries) {
		return nil, false
	}
	now := time.Now()
	out := make([]Message, 0, len(entries)-idx)
	for _, e := range entries[idx:] {
		e.lastAccess = now
		out = append(out, e.message)
	}
	return out, true
}

// SignalPurge is the downstream-consumer feedback hook: callers that have
// durably checkpointed past a stream's earlier entries call this to hint
// the cache it may evict ahead of the normal TTL. It records no pressure
// signal of its own; IsUnderPressure sees it only through the entries it
// removes.
func (c *Cache) SignalPurge(streamID string, upTo Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.streams[streamID]
	idx := sort.Search(len(entries), func(i int) bool { return entries[i].message.Position >= upTo })
	if idx > 0 {
		c.streams[streamID] = entries[idx:]
	}
	if len(c.streams[streamID]) == 0 {
		delete(c.streams, streamID)
	}
}

// IsUnderPressure reports whether the cache currently holds more buffered
// entries than a slow consumer is likely to be able to drain, the signal
// the placement/admission layer uses to shed load.
func (c *Cache) IsUnderPressure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, entries := range c.streams {
		total += len(entries)
	}
	return total > pressureThreshold
}

const pressureThreshold = 10000

func (c *Cache) expireLoop(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Cache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for streamID, entries := range c.streams {
		kept := entries[:0:0]
		for _, e := range entries {
			if now.Sub(e.message.EnqueuedAt) <= c.expiry {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(c.streams, streamID)
			continue
		}
		c.streams[streamID] = kept
	}
}
