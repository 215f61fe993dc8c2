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

package hash

import "github.com/dgryski/go-rendezvous"

// Rendezvous wraps dgryski/go-rendezvous to provide highest-random-weight
// hashing: a deterministic, hash-based placement strategy chosen specifically
// because membership changes only reshuffle the keys owned by the silo that
// joined or left, unlike plain modulo hashing.
type Rendezvous struct {
	r       *rendezvous.Rendezvous
	members []string
}

// NewRendezvous builds a Rendezvous hasher over the given member set.
func NewRendezvous(members []string) *Rendezvous {
	cp := append([]string(nil), members...)
	return &Rendezvous{
		r:       rendezvous.New(cp, HashBytesString),
		members: cp,
	}
}

// HashBytesString adapts HashBytes to the string-keyed signature
// go-rendezvous expects.
func HashBytesString(s string) uint64 {
	return HashBytes([]byte(s))
}

// Get returns the member that owns key under the current membership set.
func (r *Rendezvous) Get(key string) (string, bool) {
	if len(r.members) == 0 {
		return "", false
	}
	return r.r.Lookup(key), true
}

// Add grows the membership set by one member without disturbing ownership
// of keys that continue to hash to their existing owner.
func (r *Rendezvous) Add(member string) {
	r.r.Add(member)
	r.members = append(r.members, member)
}

// Remove shrinks the membership set, rebuilding the hasher (go-rendezvous
// has no incremental remove).
func (r *Rendezvous) Remove(member string) {
	out := r.members[:0]
	for _, m := range r.members {
		if m != member {
			out = append(out, m)
		}
	}
	r.members = append([]string(nil), out...)
	r.r = rendezvous.New(r.members, HashBytesString)
}

// Members returns the current membership set.
func (r *Rendezvous) Members() []string {
	return append([]string(nil), r.members...)
}
