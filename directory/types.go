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

// Package directory implements the Grain Directory: the distributed mapping
// from grain identity to current activation location, sharded by a
// consistent hash ring over active silos, with a bounded per-silo cache of
// entries owned elsewhere and invalidation carried on response messages.
package directory

import (
	"time"

	"github.com/meshgrain/silo/identity"
)

// Entry is one row of the directory: a grain identity mapped to its current
// activation address, with a registration timestamp and an optional
// ownership hint (the silo the registering caller believed to be the
// shard owner, used to detect ownership migration).
type Entry struct {
	Grain        identity.GrainIdentity
	Activation   identity.ActivationAddress
	RegisteredAt time.Time
	OwnerHint    string
}
