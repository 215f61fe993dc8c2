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

package identity

import (
	"github.com/google/uuid"

	"github.com/meshgrain/silo/address"
)

// ActivationID disambiguates successive activations of the same grain; it is
// unique within the silo that minted it.
type ActivationID string

// NewActivationID mints a fresh, silo-unique activation identity.
func NewActivationID() ActivationID {
	return ActivationID(uuid.NewString())
}

// ActivationAddress names one physical instance of a grain: its logical
// identity, the silo currently hosting it, and the activation identity that
// disambiguates it from earlier or later activations of the same grain on
// the same or a different silo.
type ActivationAddress struct {
	Grain   GrainIdentity
	Silo    address.Address
	ActID   ActivationID
}

// NewActivationAddress builds an ActivationAddress.
func NewActivationAddress(grain GrainIdentity, silo address.Address, actID ActivationID) ActivationAddress {
	return ActivationAddress{Grain: grain, Silo: silo, ActID: actID}
}

// String renders a canonical, loggable form.
func (a ActivationAddress) String() string {
	return a.Grain.String() + "@" + a.Silo.String() + "#" + string(a.ActID)
}

// Equal reports whether two activation addresses name the same physical
// activation.
func (a ActivationAddress) Equal(other ActivationAddress) bool {
	return a.Grain.Equal(other.Grain) && a.Silo.Equal(other.Silo) && a.ActID == other.ActID
}

// Less gives a deterministic (silo address, activation identity)
// lexicographic order over activations of the same grain: the lower tuple
// sorts first.
func (a ActivationAddress) Less(other ActivationAddress) bool {
	if !a.Silo.Equal(other.Silo) {
		return a.Silo.Less(other.Silo)
	}
	return a.ActID < other.ActID
}

// IsZero reports whether this is the unset ActivationAddress value.
func (a ActivationAddress) IsZero() bool {
	return a.Silo.IsZero() && a.ActID == ""
}
