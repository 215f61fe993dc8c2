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
	"sync"

	"github.com/meshgrain/silo/address"
	"github.com/meshgrain/silo/directory"
	"github.com/meshgrain/silo/errors"
	"github.com/meshgrain/silo/identity"
	"github.com/meshgrain/silo/membership"
	"github.com/meshgrain/silo/message"
	"github.com/meshgrain/silo/router"
)

// Cluster is a single-process registry of Silo peers, standing in for the
// Connection Manager a real cross-process deployment would use. Its
// adapters satisfy membership.Prober, directory.RemoteOwner,
// router.Deliverer and RemoteActivator by calling directly into a peer
// Silo, which is sound exactly because every peer lives in the same process
// and address space; a multi-host
// deployment instead adapts these four interfaces to the transport package's
// Codec/PrefixWriter framing over real sockets; that framing is explicitly
// out of this runtime's core scope; swapping the adapter is the only change
// needed to go from this single-process Cluster to a networked one.
type Cluster struct {
	mu    sync.RWMutex
	silos map[string]*Silo
}

// NewCluster builds an empty Cluster.
func NewCluster() *Cluster {
	return &Cluster{silos: make(map[string]*Silo)}
}

func (c *Cluster) register(addr address.Address, s *Silo) {
	c.mu.Lock()
	c.silos[addr.String()] = s
	c.mu.Unlock()
}

func (c *Cluster) get(addr address.Address) (*Silo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.silos[addr.String()]
	return s, ok
}

func (c *Cluster) proberFor(self *Silo) membership.Prober {
	return clusterProber{cluster: c, self: self}
}

func (c *Cluster) remoteOwnerFor(self *Silo) directory.RemoteOwner {
	return clusterRemoteOwner{cluster: c, self: self}
}

func (c *Cluster) delivererFor(self *Silo) router.Deliverer {
	return clusterDeliverer{cluster: c, self: self}
}

func (c *Cluster) activatorFor(self *Silo) RemoteActivator {
	return clusterActivator{cluster: c, self: self}
}

type clusterActivator struct {
	cluster *Cluster
	self    *Silo
}

// ActivateRemote implements RemoteActivator by calling directly into the
// target peer's activateLocal, the in-process stand-in for an "activate
// this grain" system request over the Connection Manager.
func (a clusterActivator) ActivateRemote(ctx context.Context, target address.Address, grain identity.GrainIdentity) (identity.ActivationAddress, error) {
	s, ok := a.cluster.get(target)
	if !ok {
		return identity.ActivationAddress{}, errors.ErrNoEligibleSilo
	}
	return s.activateLocal(ctx, grain)
}

type clusterProber struct {
	cluster *Cluster
	self    *Silo
}

// Probe implements membership.Prober by checking that the target silo is
// registered in the same in-process Cluster and has been started. A real
// Prober would exchange a lightweight liveness ping over the Connection
// Manager; here, process membership in the Cluster registry stands in for
// reachability.
func (p clusterProber) Probe(_ context.Context, target address.Address) error {
	s, ok := p.cluster.get(target)
	if !ok || s.startedAt.IsZero() {
		return errors.ErrOverloaded
	}
	return nil
}

type clusterRemoteOwner struct {
	cluster *Cluster
	self    *Silo
}

func (r clusterRemoteOwner) RemoteRegister(_ context.Context, owner address.Address, activation identity.ActivationAddress) (identity.ActivationAddress, error) {
	s, ok := r.cluster.get(owner)
	if !ok {
		return identity.ActivationAddress{}, errors.ErrActivationNotFound
	}
	return s.Directory.AuthoritativeRegister(activation), nil
}

func (r clusterRemoteOwner) RemoteLookup(_ context.Context, owner address.Address, grain identity.GrainIdentity) (identity.ActivationAddress, bool, error) {
	s, ok := r.cluster.get(owner)
	if !ok {
		return identity.ActivationAddress{}, false, errors.ErrActivationNotFound
	}
	addr, found := s.Directory.AuthoritativeLookup(grain)
	return addr, found, nil
}

func (r clusterRemoteOwner) RemoteUnregister(_ context.Context, owner address.Address, activation identity.ActivationAddress) error {
	s, ok := r.cluster.get(owner)
	if !ok {
		return errors.ErrActivationNotFound
	}
	s.Directory.AuthoritativeUnregister(activation)
	return nil
}

type clusterDeliverer struct {
	cluster *Cluster
	self    *Silo
}

// Deliver implements router.Deliverer by handing msg directly to the
// target silo's Router, as if it had just arrived off the wire.
func (d clusterDeliverer) Deliver(ctx context.Context, msg message.Message) error {
	target, ok := d.cluster.get(msg.Header.TargetSilo)
	if !ok {
		return errors.ErrStaleActivation
	}
	if msg.Header.Direction == message.Request {
		go func() {
			resp, err := target.localHandler(ctx, msg)
			if err != nil {
				d.self.Router.Fail(msg, rejectionFor(err))
				return
			}
			d.self.Router.Receive(resp)
		}()
		return nil
	}
	target.Router.Receive(msg)
	return nil
}

func rejectionFor(err error) message.RejectionKind {
	switch {
	case errors.Is(err, errors.ErrDeactivating), errors.Is(err, errors.ErrOverloaded):
		return message.RejectionTransient
	case errors.Is(err, errors.ErrStaleActivation):
		return message.RejectionCacheInvalidation
	case errors.Is(err, errors.ErrDuplicateRequest):
		return message.RejectionDuplicateRequest
	default:
		return message.RejectionUnrecoverable
	}
}
