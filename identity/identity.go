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

// Package identity defines grain identity and activation addressing: the
// typed, opaque keys clients and grains use to address a grain regardless of
// where (or whether) it is currently activated.
package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// KeyKind enumerates the primary-key shapes a grain identity may carry.
type KeyKind int

const (
	// KeyGUID is a 128-bit identifier primary key.
	KeyGUID KeyKind = iota
	// KeyInt64 is a 64-bit integer primary key.
	KeyInt64
	// KeyString is a string primary key.
	KeyString
	// KeyInt64Extended is a 64-bit integer primary key with a string
	// suffix.
	KeyInt64Extended
	// KeyGUIDExtended is a 128-bit identifier primary key with a string
	// suffix.
	KeyGUIDExtended
)

// GrainIdentity is a stable, typed, opaque key: a type tag paired with one of
// the primary-key shapes in KeyKind. System grains pin a silo address into
// their string key to bind them to a specific silo.
type GrainIdentity struct {
	TypeTag string
	Kind    KeyKind
	GUID    uuid.UUID
	Int     int64
	Str     string
}

// NewGUID builds a GrainIdentity keyed by a 128-bit identifier.
func NewGUID(typeTag string, id uuid.UUID) GrainIdentity {
	return GrainIdentity{TypeTag: typeTag, Kind: KeyGUID, GUID: id}
}

// NewInt64 builds a GrainIdentity keyed by a 64-bit integer.
func NewInt64(typeTag string, id int64) GrainIdentity {
	return GrainIdentity{TypeTag: typeTag, Kind: KeyInt64, Int: id}
}

// NewString builds a GrainIdentity keyed by a string.
func NewString(typeTag, id string) GrainIdentity {
	return GrainIdentity{TypeTag: typeTag, Kind: KeyString, Str: id}
}

// NewInt64Extended builds a GrainIdentity keyed by a 64-bit integer plus a
// string suffix.
func NewInt64Extended(typeTag string, id int64, suffix string) GrainIdentity {
	return GrainIdentity{TypeTag: typeTag, Kind: KeyInt64Extended, Int: id, Str: suffix}
}

// NewGUIDExtended builds a GrainIdentity keyed by a 128-bit identifier plus a
// string suffix.
func NewGUIDExtended(typeTag string, id uuid.UUID, suffix string) GrainIdentity {
	return GrainIdentity{TypeTag: typeTag, Kind: KeyGUIDExtended, GUID: id, Str: suffix}
}

// String renders a canonical, hashable, loggable form of the identity.
func (g GrainIdentity) String() string {
	switch g.Kind {
	case KeyGUID:
		return fmt.Sprintf("%s/%s", g.TypeTag, g.GUID.String())
	case KeyInt64:
		return fmt.Sprintf("%s/%d", g.TypeTag, g.Int)
	case KeyString:
		return fmt.Sprintf("%s/%s", g.TypeTag, g.Str)
	case KeyInt64Extended:
		return fmt.Sprintf("%s/%d+%s", g.TypeTag, g.Int, g.Str)
	case KeyGUIDExtended:
		return fmt.Sprintf("%s/%s+%s", g.TypeTag, g.GUID.String(), g.Str)
	default:
		return fmt.Sprintf("%s/?", g.TypeTag)
	}
}

// Equal reports whether two grain identities refer to the same grain.
func (g GrainIdentity) Equal(other GrainIdentity) bool {
	return g.String() == other.String()
}

// HashKey returns the byte representation used for consistent hashing
// (directory partitioning) and reminder grain-hash computation.
func (g GrainIdentity) HashKey() []byte {
	return []byte(g.String())
}
