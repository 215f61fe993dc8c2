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
	"time"
)

// Backend is the pluggable cluster-membership storage collaborator. All
// mutating operations are optimistic: they carry the version/etag the
// caller last read, and the backend must atomically reject on mismatch by
// returning false — never by raising an error. Implementations observed in
// the field: a cloud table store, a document key-value store with
// transactional multi-op, SQL, and an in-memory store hosted by a single
// primary silo (the MemoryBackend in this package).
type Backend interface {
	// Initialize prepares the backend for use, optionally seeding the
	// table version row if the backend requires one to exist before any
	// row can be inserted. tryInitTableVersion is advisory: a backend
	// that already has a version row may ignore it.
	Initialize(ctx context.Context, tryInitTableVersion uint64) error
	// ReadAll returns every row and the current table version.
	ReadAll(ctx context.Context) (Table, error)
	// ReadRow returns the single row for the given silo, if present.
	ReadRow(ctx context.Context, silo Entry) (Table, error)
	// InsertRow inserts a new row, atomically paired with a bump of the
	// table version. tableVersion is the version the caller last
	// observed; the insert must fail (return false, nil) if the backend's
	// current version does not match.
	InsertRow(ctx context.Context, entry Entry, tableVersion uint64) (bool, error)
	// UpdateRow updates an existing row, atomically paired with a bump of
	// the table version. etag must match the row's current etag and
	// tableVersion must match the table's current version, or the update
	// fails (returns false, nil) without mutating anything.
	UpdateRow(ctx context.Context, entry Entry, etag string, tableVersion uint64) (bool, error)
	// UpdateIAmAlive writes only the IAmAliveTime field of the row for
	// entry.Silo, without a version bump. This is the fast,
	// non-contentious heartbeat path.
	UpdateIAmAlive(ctx context.Context, entry Entry) error
	// DeleteCluster removes every row belonging to the given cluster id.
	DeleteCluster(ctx context.Context, clusterID string) error
	// CleanupDefunct removes Dead rows whose IAmAliveTime is older than
	// before, for operator hygiene.
	CleanupDefunct(ctx context.Context, before time.Time) error
}
