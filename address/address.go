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

// Package address defines the stable identity of a silo: a network endpoint
// plus a monotonic generation number assigned at silo start. Two processes on
// the same endpoint at different times are distinct silos.
package address

import "fmt"

// Address identifies a single silo process. Equality requires both the
// endpoint and the generation to match: a restarted process on the same
// host:port is a different silo.
type Address struct {
	Host       string
	Port       int
	Generation int64
}

// New builds an Address for the given endpoint and generation.
func New(host string, port int, generation int64) Address {
	return Address{Host: host, Port: port, Generation: generation}
}

// Endpoint returns the "host:port" pair without the generation, useful for
// dialing and for grouping rows that refer to the same physical endpoint
// across restarts.
func (a Address) Endpoint() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// String renders the address as "host:port@generation", the canonical
// serialization used for hashing, logging, and ordering.
func (a Address) String() string {
	return fmt.Sprintf("%s@%d", a.Endpoint(), a.Generation)
}

// Equal reports whether two addresses refer to the same silo instance.
func (a Address) Equal(other Address) bool {
	return a.Host == other.Host && a.Port == other.Port && a.Generation == other.Generation
}

// Less provides a deterministic ordering between silo addresses:
// lexicographic on the string form, which orders first by endpoint then by
// generation.
func (a Address) Less(other Address) bool {
	return a.String() < other.String()
}

// IsZero reports whether this is the unset Address value.
func (a Address) IsZero() bool {
	return a.Host == "" && a.Port == 0 && a.Generation == 0
}
