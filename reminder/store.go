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

// Package reminder implements the durable reminder store and the local
// timer / reminder tick service: durable, cluster-persistent recurring
// wake-ups bound to a grain, keyed by (service id, grain id, reminder name)
// with a secondary range index over a 32-bit grain hash for ring-range
// scans during ownership handoff.
package reminder

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meshgrain/silo/errors"
	"github.com/meshgrain/silo/hash"
	"github.com/meshgrain/silo/identity"
)

// Row is one durable reminder registration.
type Row struct {
	ServiceID string
	GrainID   identity.GrainIdentity
	Name      string
	GrainHash uint32
	Period    time.Duration
	StartAt   time.Time
	ETag      string
}

// Store is the pluggable reminder backend.
type Store interface {
	ReadRow(ctx context.Context, serviceID string, grainID identity.GrainIdentity, name string) (Row, error)
	ReadRowsForGrain(ctx context.Context, serviceID string, grainID identity.GrainIdentity) ([]Row, error)
	ReadRowsForHashRange(ctx context.Context, serviceID string, begin, end uint32) ([]Row, error)
	Upsert(ctx context.Context, row Row) (etag string, err error)
	Remove(ctx context.Context, serviceID string, grainID identity.GrainIdentity, name, etag string) error
}

// MemoryStore is an in-memory Store, grounded on the same pattern as
// membership.MemoryBackend: a single mutex-guarded map plus opaque etags
// minted on every mutation, suitable for a primary-silo-hosted deployment
// or tests.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]Row
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Row)}
}

func rowKey(serviceID string, grainID identity.GrainIdentity, name string) string {
	return serviceID + "/" + grainID.String() + "/" + name
}

// ReadRow implements Store.
func (s *MemoryStore) ReadRow(_ context.Context, serviceID string, grainID identity.GrainIdentity, name string) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[rowKey(serviceID, grainID, name)]
	if !ok {
		return Row{}, errors.ErrActivationNotFound
	}
	return row, nil
}

// ReadRowsForGrain implements Store.
func (s *MemoryStore) ReadRowsForGrain(_ context.Context, serviceID string, grainID identity.GrainIdentity) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Row
	for _, row := range s.rows {
		if row.ServiceID == serviceID && row.GrainID.Equal(grainID) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ReadRowsForHashRange implements Store's ring-range query: when begin <
// end it is the half-open interval (begin, end]; when begin >= end it is
// the wraparound union of (begin, max] and [0, end].
func (s *MemoryStore) ReadRowsForHashRange(_ context.Context, serviceID string, begin, end uint32) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Row
	for _, row := range s.rows {
		if row.ServiceID != serviceID {
			continue
		}
		if InRange(row.GrainHash, begin, end) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrainHash < out[j].GrainHash })
	return out, nil
}

// InRange reports whether h falls in the half-open range (begin, end],
// or, when begin >= end, in the wraparound union (begin, max] ∪ [0, end].
func InRange(h, begin, end uint32) bool {
	if begin < end {
		return h > begin && h <= end
	}
	return h > begin || h <= end
}

// Upsert implements Store, minting a fresh etag on every write.
func (s *MemoryStore) Upsert(_ context.Context, row Row) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row.GrainHash = hash.Hash32(row.GrainID.HashKey())
	row.ETag = uuid.NewString()
	s.rows[rowKey(row.ServiceID, row.GrainID, row.Name)] = row
	return row.ETag, nil
}

// Remove implements Store, conditional on etag.
func (s *MemoryStore) Remove(_ context.Context, serviceID string, grainID identity.GrainIdentity, name, etag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rowKey(serviceID, grainID, name)
	row, ok := s.rows[key]
	if !ok {
		return nil
	}
	if row.ETag != etag {
		return errors.ErrInconsistentState
	}
	delete(s.rows, key)
	return nil
}
