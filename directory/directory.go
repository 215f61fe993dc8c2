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

package directory

import (
	"context"
	"sync"
	"time"

	"github.com/meshgrain/silo/address"
	"github.com/meshgrain/silo/hash"
	"github.com/meshgrain/silo/identity"
	"github.com/meshgrain/silo/log"
	"github.com/meshgrain/silo/membership"
)

// RemoteOwner is the narrow interface the Directory uses to forward a
// register/lookup/unregister call to whichever silo currently owns a
// grain's authoritative entry. Production silos implement this over the
// Message Router; tests use an in-process fake that talks directly to
// another Directory.
type RemoteOwner interface {
	RemoteRegister(ctx context.Context, owner address.Address, activation identity.ActivationAddress) (identity.ActivationAddress, error)
	RemoteLookup(ctx context.Context, owner address.Address, grain identity.GrainIdentity) (identity.ActivationAddress, bool, error)
	RemoteUnregister(ctx context.Context, owner address.Address, activation identity.ActivationAddress) error
}

// Directory implements the grain directory: ownership of
// a grain's authoritative entry is sharded by a consistent-hash ring over
// active silos; non-owned entries are cached locally with a bounded LRU and
// invalidated via the cache-invalidation header / rejection path.
type Directory struct {
	self    address.Address
	oracle  *membership.Oracle
	remote  RemoteOwner
	cache   *Cache
	logger  log.Logger

	mu        sync.Mutex
	authority map[string]Entry // grains this silo currently owns, keyed by grain string
}

// New constructs a Directory for the given silo.
func New(self address.Address, oracle *membership.Oracle, remote RemoteOwner, cacheCapacity int, logger log.Logger) *Directory {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Directory{
		self:      self,
		oracle:    oracle,
		remote:    remote,
		cache:     NewCache(cacheCapacity),
		logger:    logger,
		authority: make(map[string]Entry),
	}
}

// owner returns the silo address currently responsible for grain's
// authoritative entry: the ring successor of the grain's hash among active
// silos.
func (d *Directory) owner(ctx context.Context, grain identity.GrainIdentity) (address.Address, error) {
	table, err := d.oracle.ReadAll(ctx)
	if err != nil {
		return address.Address{}, err
	}
	actives := table.ActiveSilos()
	keys := make([]string, 0, len(actives))
	for _, a := range actives {
		keys = append(keys, a.String())
	}
	ring := hash.NewRing(keys)
	ownerKey, ok := ring.Owner(grain.HashKey())
	if !ok {
		return address.Address{}, errNoActiveSilos
	}
	for _, a := range actives {
		if a.String() == ownerKey {
			return a, nil
		}
	}
	return address.Address{}, errNoActiveSilos
}

// Register registers a new activation, returning the winning address.
// Concurrent registrations for the same grain return the same winner; the
// loser must deactivate its own activation (the caller is responsible for
// that follow-up, signalled by comparing the returned address to the one it
// proposed).
func (d *Directory) Register(ctx context.Context, proposed identity.ActivationAddress) (identity.ActivationAddress, error) {
	owner, err := d.owner(ctx, proposed.Grain)
	if err != nil {
		return identity.ActivationAddress{}, err
	}

	if owner.Equal(d.self) {
		return d.registerLocal(proposed), nil
	}
	winner, err := d.remote.RemoteRegister(ctx, owner, proposed)
	if err != nil {
		return identity.ActivationAddress{}, err
	}
	d.cache.Put(Entry{Grain: proposed.Grain, Activation: winner, RegisteredAt: time.Now()})
	return winner, nil
}

// registerLocal performs the check-and-insert for a grain this silo owns:
// the first registration to reach the owner wins, and every later proposal
// for the same grain is answered with that stored winner, so all concurrent
// callers observe the same address.
func (d *Directory) registerLocal(proposed identity.ActivationAddress) identity.ActivationAddress {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := proposed.Grain.String()
	existing, ok := d.authority[key]
	if !ok {
		d.authority[key] = Entry{
			Grain:        proposed.Grain,
			Activation:   proposed,
			RegisteredAt: time.Now(),
		}
		return proposed
	}
	return existing.Activation
}

// Unregister removes an activation's directory entry, called on
// deactivation or on detecting the death of the owning silo.
func (d *Directory) Unregister(ctx context.Context, activation identity.ActivationAddress) error {
	owner, err := d.owner(ctx, activation.Grain)
	if err != nil {
		return err
	}
	d.cache.Invalidate(activation.Grain)
	if owner.Equal(d.self) {
		d.mu.Lock()
		key := activation.Grain.String()
		if current, ok := d.authority[key]; ok && current.Activation.Equal(activation) {
			delete(d.authority, key)
		}
		d.mu.Unlock()
		return nil
	}
	return d.remote.RemoteUnregister(ctx, owner, activation)
}

// Lookup resolves a grain identity to its current activation address,
// consulting the local cache first, then the authoritative owner on a miss.
func (d *Directory) Lookup(ctx context.Context, grain identity.GrainIdentity) (identity.ActivationAddress, bool, error) {
	if entry, ok := d.cache.Get(grain); ok {
		return entry.Activation, true, nil
	}

	owner, err := d.owner(ctx, grain)
	if err != nil {
		return identity.ActivationAddress{}, false, err
	}
	if owner.Equal(d.self) {
		d.mu.Lock()
		entry, ok := d.authority[grain.String()]
		d.mu.Unlock()
		if !ok {
			return identity.ActivationAddress{}, false, nil
		}
		return entry.Activation, true, nil
	}

	addr, found, err := d.remote.RemoteLookup(ctx, owner, grain)
	if err != nil || !found {
		return identity.ActivationAddress{}, found, err
	}
	d.cache.Put(Entry{Grain: grain, Activation: addr, RegisteredAt: time.Now()})
	return addr, true, nil
}

// Invalidate drops grain's cached entry, used when a response message's
// cache-invalidation header names it, or when a CacheInvalidation rejection
// is received.
func (d *Directory) Invalidate(grain identity.GrainIdentity) {
	d.cache.Invalidate(grain)
}

// InvalidateSilo drops every cached entry pointing at a dead silo, called
// when the membership oracle reports a peer Dead. The authoritative entries
// this silo owns for grains that were hosted there are also dropped, since
// their activations no longer exist.
func (d *Directory) InvalidateSilo(dead address.Address) {
	d.mu.Lock()
	for key, e := range d.authority {
		if e.Activation.Silo.Equal(dead) {
			delete(d.authority, key)
		}
	}
	d.mu.Unlock()

	d.cache.InvalidateSilo(dead)
}

// OwnedEntries returns a snapshot of the entries this silo currently holds
// authority over, used by rebalancing on membership change.
func (d *Directory) OwnedEntries() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Entry, 0, len(d.authority))
	for _, e := range d.authority {
		out = append(out, e)
	}
	return out
}

// AuthoritativeRegister performs the local check-and-insert for a
// register request a remote silo addressed to this silo believing it to be
// grain's owner. Exposed for the RemoteOwner server side to call without
// re-deriving ownership or re-delegating through Register.
func (d *Directory) AuthoritativeRegister(proposed identity.ActivationAddress) identity.ActivationAddress {
	return d.registerLocal(proposed)
}

// AuthoritativeLookup returns this silo's local authoritative entry for
// grain, without consulting the cache or re-deriving ownership. Exposed for
// the RemoteOwner server side.
func (d *Directory) AuthoritativeLookup(grain identity.GrainIdentity) (identity.ActivationAddress, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.authority[grain.String()]
	if !ok {
		return identity.ActivationAddress{}, false
	}
	return entry.Activation, true
}

// AuthoritativeUnregister removes activation's local authoritative entry if
// still present under this silo's authority. Exposed for the RemoteOwner
// server side.
func (d *Directory) AuthoritativeUnregister(activation identity.ActivationAddress) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := activation.Grain.String()
	if current, ok := d.authority[key]; ok && current.Activation.Equal(activation) {
		delete(d.authority, key)
	}
}

var errNoActiveSilos = membershipNoActiveSilosErr{}

type membershipNoActiveSilosErr struct{}

func (membershipNoActiveSilosErr) Error() string { return "directory: no active silos to own grain" }
