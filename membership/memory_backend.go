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

package membership

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meshgrain/silo/address"
	"github.com/meshgrain/silo/errors"
)

// MemoryBackend is an in-memory Backend, hosted by a single primary silo.
// It is the default backend for tests and single-process development, and
// the reference implementation of the optimistic-concurrency contract every
// other Backend must honor.
type MemoryBackend struct {
	mu      sync.Mutex
	rows    map[string]Entry
	etags   map[string]string
	version uint64
	initialized bool
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend constructs an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		rows:  make(map[string]Entry),
		etags: make(map[string]string),
	}
}

func (m *MemoryBackend) Initialize(_ context.Context, tryInitTableVersion uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		m.version = tryInitTableVersion
		m.initialized = true
	}
	return nil
}

func (m *MemoryBackend) ReadAll(_ context.Context) (Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(), nil
}

func (m *MemoryBackend) ReadRow(_ context.Context, silo Entry) (Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := silo.Silo.String()
	if e, ok := m.rows[key]; ok {
		return Table{Entries: []Entry{e.Clone()}, Version: m.version}, nil
	}
	return Table{Version: m.version}, nil
}

func (m *MemoryBackend) InsertRow(_ context.Context, entry Entry, tableVersion uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return false, nil
	}
	if tableVersion != m.version {
		return false, nil
	}
	key := entry.Silo.String()
	if _, exists := m.rows[key]; exists {
		return false, nil
	}
	m.rows[key] = entry.Clone()
	m.etags[key] = uuid.NewString()
	m.version++
	return true, nil
}

func (m *MemoryBackend) UpdateRow(_ context.Context, entry Entry, etag string, tableVersion uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := entry.Silo.String()
	current, exists := m.rows[key]
	if !exists {
		// A missing row on update is refused rather than silently treated
		// as "version 0".
		return false, errors.ErrMembershipRowAbsent
	}
	_ = current
	if m.etags[key] != etag {
		return false, nil
	}
	if tableVersion != m.version {
		return false, nil
	}
	m.rows[key] = entry.Clone()
	m.etags[key] = uuid.NewString()
	m.version++
	return true, nil
}

func (m *MemoryBackend) UpdateIAmAlive(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := entry.Silo.String()
	row, ok := m.rows[key]
	if !ok {
		return errors.ErrMembershipRowAbsent
	}
	row.IAmAliveTime = entry.IAmAliveTime
	m.rows[key] = row
	// Deliberately no version bump and no etag rotation: this is the
	// fast, non-contentious heartbeat path.
	return nil
}

func (m *MemoryBackend) DeleteCluster(_ context.Context, clusterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.rows {
		if e.Role == clusterID {
			delete(m.rows, key)
			delete(m.etags, key)
		}
	}
	return nil
}

func (m *MemoryBackend) CleanupDefunct(_ context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.rows {
		if e.Status == Dead && e.IAmAliveTime.Before(before) {
			delete(m.rows, key)
			delete(m.etags, key)
		}
	}
	return nil
}

// Etag exposes the current concurrency tag for a silo row, used by the
// Oracle to populate its update calls. Returns ("", false) if absent.
func (m *MemoryBackend) Etag(silo address.Address) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	etag, ok := m.etags[silo.String()]
	return etag, ok
}

func (m *MemoryBackend) snapshotLocked() Table {
	entries := make([]Entry, 0, len(m.rows))
	for _, e := range m.rows {
		entries = append(entries, e.Clone())
	}
	return Table{Entries: entries, Version: m.version}
}
