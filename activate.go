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

package silo

import (
	"context"

	"github.com/meshgrain/silo/address"
	"github.com/meshgrain/silo/catalog"
	"github.com/meshgrain/silo/errors"
	"github.com/meshgrain/silo/identity"
)

// RemoteActivator is the narrow interface Silo uses to ask a placement
// target silo to locally activate a grain it has not yet hosted.
// Production cross-process deployments implement this over the Connection
// Manager; the in-process Cluster implements it directly.
type RemoteActivator interface {
	ActivateRemote(ctx context.Context, target address.Address, grain identity.GrainIdentity) (identity.ActivationAddress, error)
}

// Activate implements the Placement & activation lifecycle module's
// getOrCreate(grainId) → (address, existing?): it resolves grain's current
// activation via the Directory, or, on a miss, asks the Placement strategy
// to choose a host among active silos, has that silo materialize the
// activation, and registers the result with the Directory. Placement is
// advisory only: if a concurrent caller's registration wins the directory
// race, the loser's freshly created activation is deactivated with
// ReasonLostRace and the winner's address is returned instead.
func (s *Silo) Activate(ctx context.Context, grain identity.GrainIdentity) (identity.ActivationAddress, bool, error) {
	if addr, found, err := s.Directory.Lookup(ctx, grain); err != nil {
		return identity.ActivationAddress{}, false, err
	} else if found {
		return addr, true, nil
	}

	table, err := s.Membership.ReadAll(ctx)
	if err != nil {
		return identity.ActivationAddress{}, false, err
	}
	active := table.ActiveSilos()

	target, err := s.cfg.Placement.Choose(ctx, grain, active, s.cfg.Self)
	if err != nil {
		return identity.ActivationAddress{}, false, err
	}

	if target.Equal(s.cfg.Self) {
		addr, err := s.activateLocal(ctx, grain)
		return addr, false, err
	}

	if s.activator == nil {
		return identity.ActivationAddress{}, false, errors.ErrNoEligibleSilo
	}
	addr, err := s.activator.ActivateRemote(ctx, target, grain)
	if err != nil {
		return identity.ActivationAddress{}, false, err
	}
	return addr, false, nil
}

// activateLocal materializes grain's activation on this silo and registers
// it with the Directory, deactivating its own copy if a concurrent caller
// elsewhere already won the registration race.
func (s *Silo) activateLocal(ctx context.Context, grain identity.GrainIdentity) (identity.ActivationAddress, error) {
	proposed := identity.NewActivationAddress(grain, s.cfg.Self, identity.NewActivationID())

	activation, existed, err := s.Catalog.GetOrCreate(ctx, proposed)
	if err != nil {
		return identity.ActivationAddress{}, err
	}
	if existed {
		proposed = activation.Address
	}

	winner, err := s.Directory.Register(ctx, proposed)
	if err != nil {
		return identity.ActivationAddress{}, err
	}
	if !winner.Equal(proposed) {
		if derr := s.Catalog.Deactivate(ctx, proposed, catalog.ReasonLostRace); derr != nil {
			s.cfg.Logger.Warnf("silo: deactivating lost-race activation %s: %v", proposed, derr)
		}
		s.dropGroup(grain.String())
	}
	return winner, nil
}
