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

// Package discovery provides pluggable peer-discovery backends consumed by
// the membership oracle's Prober and by silo bootstrap: given a seed list,
// discover the set of peer endpoints currently reachable. This mirrors the
// teacher's discovery/* package family (consul, etcd, nats, kubernetes,
// mDNS, static), narrowed here to two concrete, fully wired
// implementations: a static list and a memberlist-backed gossip mesh.
package discovery

import "context"

// Discoverer resolves the set of peer endpoints a silo should consider when
// bootstrapping membership or selecting probe targets.
type Discoverer interface {
	// Initialize prepares the discoverer (e.g. dials a directory service).
	Initialize() error
	// Register announces the local silo as a participant.
	Register(ctx context.Context, selfEndpoint string) error
	// DiscoverPeers returns the currently known peer endpoints, excluding
	// the local silo.
	DiscoverPeers(ctx context.Context) ([]string, error)
	// Close releases any resources held by the discoverer.
	Close() error
}
