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

// Package hash provides the two hashing strategies this runtime relies on: a
// consistent-hash ring (directory ownership partitioning, deterministic
// probe-subset selection for the failure detector) and rendezvous
// (highest-random-weight) hashing for placement, which needs to stay stable
// under membership change.
package hash

import (
	"sort"

	"github.com/zeebo/xxh3"
)

const defaultVirtualNodes = 64

// Ring is a consistent-hash ring over a set of string keys (silo address
// strings). It is used both by the grain directory to decide which active
// silo owns a grain's authoritative entry, and by the membership oracle to
// pick the deterministic subset of peers a silo probes each round.
type Ring struct {
	virtualNodes int
	points       []point
}

type point struct {
	hash uint64
	key  string
}

// NewRing builds a ring over the given keys.
func NewRing(keys []string) *Ring {
	return NewRingWithVirtualNodes(keys, defaultVirtualNodes)
}

// NewRingWithVirtualNodes builds a ring with an explicit virtual-node count
// per key, trading memory for a smoother load distribution.
func NewRingWithVirtualNodes(keys []string, virtualNodes int) *Ring {
	if virtualNodes <= 0 {
		virtualNodes = defaultVirtualNodes
	}
	r := &Ring{virtualNodes: virtualNodes}
	r.points = make([]point, 0, len(keys)*virtualNodes)
	for _, k := range keys {
		for i := 0; i < virtualNodes; i++ {
			r.points = append(r.points, point{hash: hashVirtualNode(k, i), key: k})
		}
	}
	sort.Slice(r.points, func(i, j int) bool { return r.points[i].hash < r.points[j].hash })
	return r
}

func hashVirtualNode(key string, replica int) uint64 {
	buf := make([]byte, 0, len(key)+8)
	buf = append(buf, key...)
	buf = append(buf, byte(replica), byte(replica>>8), byte(replica>>16), byte(replica>>24))
	return xxh3.Hash(buf)
}

// HashBytes returns the ring's hash function applied to an arbitrary byte
// key, used to place a grain identity on the ring.
func HashBytes(key []byte) uint64 {
	return xxh3.Hash(key)
}

// Owner returns the key whose ring position immediately succeeds the hash of
// id: the ring-walk that determines which active silo owns a grain's
// authoritative directory entry.
func (r *Ring) Owner(id []byte) (string, bool) {
	if len(r.points) == 0 {
		return "", false
	}
	h := HashBytes(id)
	idx := sort.Search(len(r.points), func(i int) bool { return r.points[i].hash >= h })
	if idx == len(r.points) {
		idx = 0
	}
	return r.points[idx].key, true
}

// Successors returns up to n distinct keys following id's ring position,
// walking forward with wraparound. Used by the membership oracle to pick a
// deterministic probe subset: each silo probes its successors on the ring of
// silo addresses.
func (r *Ring) Successors(id []byte, n int) []string {
	if len(r.points) == 0 || n <= 0 {
		return nil
	}
	h := HashBytes(id)
	start := sort.Search(len(r.points), func(i int) bool { return r.points[i].hash >= h })

	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for i := 0; i < len(r.points) && len(out) < n; i++ {
		p := r.points[(start+i)%len(r.points)]
		if _, dup := seen[p.key]; dup {
			continue
		}
		seen[p.key] = struct{}{}
		out = append(out, p.key)
	}
	return out
}

// Empty reports whether the ring has no members.
func (r *Ring) Empty() bool { return len(r.points) == 0 }

// Hash32 returns the 32-bit hash the reminder store partitions its
// secondary range index by. Truncated from the same xxh3 digest HashBytes
// uses, so a grain's ring position and its reminder-range position are
// derived consistently.
func Hash32(key []byte) uint32 {
	return uint32(HashBytes(key))
}
