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

// Package placement implements the Placement Director: the set of
// strategies that choose a candidate silo for a new activation. Placement
// is advisory only — the final owner is whichever activation wins directory
// registration (see package directory) — but a good strategy keeps
// contention and cross-silo hops low.
package placement

import (
	"context"

	"github.com/meshgrain/silo/address"
	"github.com/meshgrain/silo/identity"
)

// LoadSample is one silo's resource report, published by the Deployment
// Load Publisher and consumed by the activity-count / load-aware strategy.
type LoadSample struct {
	Silo            address.Address
	ActivationCount int
	CPUPercent      float64
	MemoryPercent   float64
	ShedHeadroom    float64 // 0 = no headroom (about to shed load), 1 = fully idle
}

// Weighted computes a single comparable load score, lower is better.
func (s LoadSample) Weighted() float64 {
	return 0.5*s.CPUPercent + 0.3*s.MemoryPercent + 0.2*(1-s.ShedHeadroom)
}

// LoadPublisher reports the current LoadSample for every active silo the
// caller's oracle knows about.
type LoadPublisher interface {
	Samples(ctx context.Context) ([]LoadSample, error)
}

// Strategy chooses a silo to host a new activation of grain, given the
// active silo set and the silo the placement request originated on.
type Strategy interface {
	Choose(ctx context.Context, grain identity.GrainIdentity, active []address.Address, local address.Address) (address.Address, error)
}
