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

package discovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/memberlist"
)

// gossipDelegate implements memberlist.Delegate: it carries no broadcast
// payload of its own, since ownership of the membership table lives in the
// membership.Backend, not in memberlist's gossip state. memberlist here
// serves purely as the SWIM-style transport for the failure detector's
// ping/ack traffic and for peer discovery.
type gossipDelegate struct {
	meta []byte
}

var _ memberlist.Delegate = (*gossipDelegate)(nil)

func (d *gossipDelegate) NodeMeta(limit int) []byte {
	if len(d.meta) > limit {
		return d.meta[:limit]
	}
	return d.meta
}
func (d *gossipDelegate) NotifyMsg([]byte)                   {}
func (d *gossipDelegate) GetBroadcasts(_, _ int) [][]byte     { return nil }
func (d *gossipDelegate) LocalState(_ bool) []byte            { return nil }
func (d *gossipDelegate) MergeRemoteState(_ []byte, _ bool)   {}

// Memberlist is a Discoverer backed by hashicorp/memberlist's gossip mesh.
// Peers are discovered by joining the mesh at a seed list and then reading
// back the member roster memberlist itself maintains.
type Memberlist struct {
	mu   sync.Mutex
	cfg  *memberlist.Config
	list *memberlist.Memberlist
	seed []string
}

var _ Discoverer = (*Memberlist)(nil)

// NewMemberlist builds a Memberlist discoverer. bindHost/bindPort is the
// local gossip listen address; seed is the set of peer gossip addresses to
// join at startup.
func NewMemberlist(bindHost string, bindPort int, seed []string) *Memberlist {
	cfg := memberlist.DefaultLocalConfig()
	cfg.BindAddr = bindHost
	cfg.BindPort = bindPort
	cfg.AdvertiseAddr = bindHost
	cfg.AdvertisePort = bindPort
	cfg.Delegate = &gossipDelegate{}

	return &Memberlist{cfg: cfg, seed: append([]string(nil), seed...), list: nil}
}

func (m *Memberlist) Initialize() error {
	list, err := memberlist.Create(m.cfg)
	if err != nil {
		return fmt.Errorf("memberlist discovery: create: %w", err)
	}
	m.mu.Lock()
	m.list = list
	m.mu.Unlock()
	return nil
}

func (m *Memberlist) Register(_ context.Context, _ string) error {
	m.mu.Lock()
	list := m.list
	seed := m.seed
	m.mu.Unlock()
	if list == nil {
		return fmt.Errorf("memberlist discovery: not initialized")
	}
	if len(seed) == 0 {
		return nil
	}
	if _, err := list.Join(seed); err != nil {
		return fmt.Errorf("memberlist discovery: join: %w", err)
	}
	return nil
}

func (m *Memberlist) DiscoverPeers(_ context.Context) ([]string, error) {
	m.mu.Lock()
	list := m.list
	m.mu.Unlock()
	if list == nil {
		return nil, fmt.Errorf("memberlist discovery: not initialized")
	}
	members := list.Members()
	out := make([]string, 0, len(members))
	localName := list.LocalNode().Name
	for _, mem := range members {
		if mem.Name == localName {
			continue
		}
		out = append(out, fmt.Sprintf("%s:%d", mem.Addr.String(), mem.Port))
	}
	return out, nil
}

func (m *Memberlist) Close() error {
	m.mu.Lock()
	list := m.list
	m.mu.Unlock()
	if list == nil {
		return nil
	}
	return list.Leave(0)
}
