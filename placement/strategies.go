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

package placement

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/meshgrain/silo/address"
	"github.com/meshgrain/silo/errors"
	"github.com/meshgrain/silo/hash"
	"github.com/meshgrain/silo/identity"
)

func randSeed() int64 { return time.Now().UnixNano() }

// RandomActive chooses uniformly among active silos, excluding any reported
// as overloaded by the caller.
type RandomActive struct {
	Overloaded func(address.Address) bool
	rng        *rand.Rand
	mu         sync.Mutex
}

var _ Strategy = (*RandomActive)(nil)

// NewRandomActive builds a RandomActive strategy. overloaded may be nil, in
// which case no silo is excluded.
func NewRandomActive(overloaded func(address.Address) bool) *RandomActive {
	return &RandomActive{Overloaded: overloaded, rng: rand.New(rand.NewSource(randSeed()))}
}

func (r *RandomActive) Choose(_ context.Context, _ identity.GrainIdentity, active []address.Address, _ address.Address) (address.Address, error) {
	eligible := filterOverloaded(active, r.Overloaded)
	if len(eligible) == 0 {
		return address.Address{}, errors.ErrNoEligibleSilo
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return eligible[r.rng.Intn(len(eligible))], nil
}

// PreferLocal chooses the caller's own silo when it is active and eligible,
// falling back to RandomActive otherwise.
type PreferLocal struct {
	fallback *RandomActive
}

var _ Strategy = (*PreferLocal)(nil)

// NewPreferLocal builds a PreferLocal strategy.
func NewPreferLocal(overloaded func(address.Address) bool) *PreferLocal {
	return &PreferLocal{fallback: NewRandomActive(overloaded)}
}

func (p *PreferLocal) Choose(ctx context.Context, grain identity.GrainIdentity, active []address.Address, local address.Address) (address.Address, error) {
	eligible := filterOverloaded(active, p.fallback.Overloaded)
	for _, a := range eligible {
		if a.Equal(local) {
			return local, nil
		}
	}
	return p.fallback.Choose(ctx, grain, active, local)
}

// HashBased chooses deterministically via rendezvous hashing, so the choice
// stays stable under membership change: only keys that hashed to a joining
// or leaving silo move.
type HashBased struct{}

var _ Strategy = (*HashBased)(nil)

func (HashBased) Choose(_ context.Context, grain identity.GrainIdentity, active []address.Address, _ address.Address) (address.Address, error) {
	if len(active) == 0 {
		return address.Address{}, errors.ErrNoEligibleSilo
	}
	keys := make([]string, len(active))
	for i, a := range active {
		keys[i] = a.String()
	}
	r := hash.NewRendezvous(keys)
	winner, ok := r.Get(grain.String())
	if !ok {
		return address.Address{}, errors.ErrNoEligibleSilo
	}
	for _, a := range active {
		if a.String() == winner {
			return a, nil
		}
	}
	return address.Address{}, errors.ErrNoEligibleSilo
}

// LoadAware chooses the silo with the lowest weighted resource load, as
// reported by a LoadPublisher.
type LoadAware struct {
	publisher LoadPublisher
}

var _ Strategy = (*LoadAware)(nil)

// NewLoadAware builds a LoadAware strategy backed by the given publisher.
func NewLoadAware(publisher LoadPublisher) *LoadAware {
	return &LoadAware{publisher: publisher}
}

func (l *LoadAware) Choose(ctx context.Context, _ identity.GrainIdentity, active []address.Address, _ address.Address) (address.Address, error) {
	samples, err := l.publisher.Samples(ctx)
	if err != nil {
		return address.Address{}, err
	}
	activeSet := make(map[string]struct{}, len(active))
	for _, a := range active {
		activeSet[a.String()] = struct{}{}
	}

	var best *LoadSample
	for i := range samples {
		s := samples[i]
		if _, ok := activeSet[s.Silo.String()]; !ok {
			continue
		}
		if best == nil || s.Weighted() < best.Weighted() {
			best = &samples[i]
		}
	}
	if best == nil {
		return address.Address{}, errors.ErrNoEligibleSilo
	}
	return best.Silo, nil
}

// StatelessWorker places work in a bounded local pool sized to a multiplier
// of CPU count; unlike the other strategies there is no global uniqueness
// requirement — every silo may host its own independent pool of the same
// grain kind, and placement simply rejects once the local pool is
// saturated rather than queuing.
type StatelessWorker struct {
	maxLocal int
	mu       sync.Mutex
	inUse    int
}

var _ Strategy = (*StatelessWorker)(nil)

// NewStatelessWorker builds a StatelessWorker strategy bounded to
// runtime.NumCPU() * multiplier concurrent local activations.
func NewStatelessWorker(multiplier int) *StatelessWorker {
	if multiplier <= 0 {
		multiplier = 1
	}
	return &StatelessWorker{maxLocal: runtime.NumCPU() * multiplier}
}

func (s *StatelessWorker) Choose(_ context.Context, _ identity.GrainIdentity, _ []address.Address, local address.Address) (address.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inUse >= s.maxLocal {
		return address.Address{}, errors.ErrNoEligibleSilo
	}
	s.inUse++
	return local, nil
}

// Release frees one slot in the local pool, called on deactivation of a
// stateless-worker activation.
func (s *StatelessWorker) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inUse > 0 {
		s.inUse--
	}
}

func filterOverloaded(active []address.Address, overloaded func(address.Address) bool) []address.Address {
	if overloaded == nil {
		return active
	}
	out := make([]address.Address, 0, len(active))
	for _, a := range active {
		if !overloaded(a) {
			out = append(out, a)
		}
	}
	return out
}
