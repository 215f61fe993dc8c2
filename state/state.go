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

// Package state implements the persistent state backend: read/write/clear
// of a grain's named state blob, guarded by optimistic concurrency on an
// opaque etag.
package state

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/meshgrain/silo/errors"
	"github.com/meshgrain/silo/identity"
)

// Backend is the pluggable persistent state store. A write
// guarded by the wrong etag must fail with errors.ErrInconsistentState
// rather than silently overwrite a concurrent writer's value.
type Backend interface {
	// Read loads the current state blob and its etag. A grain with no
	// stored state for stateName returns a zero-length blob and an empty
	// etag, not an error.
	Read(ctx context.Context, grainID identity.GrainIdentity, stateName string) (blob []byte, etag string, err error)
	// Write stores blob as the new value, conditional on etag matching the
	// currently stored etag (empty etag means "must not already exist").
	// Returns the freshly minted etag on success.
	Write(ctx context.Context, grainID identity.GrainIdentity, stateName string, blob []byte, etag string) (newETag string, err error)
	// Clear removes the stored state, conditional on etag.
	Clear(ctx context.Context, grainID identity.GrainIdentity, stateName string, etag string) error
}

type rowKey struct {
	grain     string
	stateName string
}

type row struct {
	blob []byte
	etag string
}

// MemoryBackend is an in-process Backend, grounded on the same
// mutex-guarded-map-plus-minted-etag pattern as reminder.MemoryStore and
// membership.MemoryBackend: a primary-silo-hosted deployment or tests, not
// a durable production store.
type MemoryBackend struct {
	mu   sync.Mutex
	rows map[rowKey]row
}

// NewMemoryBackend builds an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{rows: make(map[rowKey]row)}
}

func key(grainID identity.GrainIdentity, stateName string) rowKey {
	return rowKey{grain: grainID.String(), stateName: stateName}
}

// Read implements Backend.
func (b *MemoryBackend) Read(_ context.Context, grainID identity.GrainIdentity, stateName string) ([]byte, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rows[key(grainID, stateName)]
	if !ok {
		return nil, "", nil
	}
	out := make([]byte, len(r.blob))
	copy(out, r.blob)
	return out, r.etag, nil
}

// Write implements Backend.
func (b *MemoryBackend) Write(_ context.Context, grainID identity.GrainIdentity, stateName string, blob []byte, etag string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key(grainID, stateName)
	existing, ok := b.rows[k]
	switch {
	case etag == "" && ok:
		return "", errors.ErrInconsistentState
	case etag != "" && (!ok || existing.etag != etag):
		return "", errors.ErrInconsistentState
	}
	stored := make([]byte, len(blob))
	copy(stored, blob)
	newETag := uuid.NewString()
	b.rows[k] = row{blob: stored, etag: newETag}
	return newETag, nil
}

// Clear implements Backend.
func (b *MemoryBackend) Clear(_ context.Context, grainID identity.GrainIdentity, stateName string, etag string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key(grainID, stateName)
	existing, ok := b.rows[k]
	if !ok {
		return nil
	}
	if existing.etag != etag {
		return errors.ErrInconsistentState
	}
	delete(b.rows, k)
	return nil
}
