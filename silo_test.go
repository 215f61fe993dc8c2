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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/meshgrain/silo/address"
	"github.com/meshgrain/silo/catalog"
	"github.com/meshgrain/silo/identity"
	"github.com/meshgrain/silo/message"
	"github.com/meshgrain/silo/router"
)

// counterGrain is the integration test's stand-in for a generated grain: a
// tiny in-memory accumulator whose Invoker understands two bodies.
type counterGrain struct {
	mu    sync.Mutex
	total int64
}

type incrBody struct{ By int64 }
type readBody struct{}

func counterInvoker(_ context.Context, instance any, body any) (any, error) {
	g := instance.(*counterGrain)
	switch b := body.(type) {
	case incrBody:
		g.mu.Lock()
		g.total += b.By
		total := g.total
		g.mu.Unlock()
		return total, nil
	case readBody:
		g.mu.Lock()
		total := g.total
		g.mu.Unlock()
		return total, nil
	case reminderFired:
		g.mu.Lock()
		g.total += 1000
		g.mu.Unlock()
		return nil, nil
	default:
		return nil, nil
	}
}

func newTestSilo(t *testing.T, host string, port int, cluster *Cluster) *Silo {
	t.Helper()
	s := New(Config{
		Self:     address.New(host, port, 1),
		HostName: host,
		Role:     "silo",
	})
	s.JoinCluster(cluster)
	s.RegisterGrainType("counter", func(identity.GrainIdentity) (any, error) {
		return &counterGrain{}, nil
	}, catalog.Hooks{}, counterInvoker)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { require.NoError(t, s.Stop(context.Background())) })
	return s
}

type capturingSink struct {
	mu       sync.Mutex
	resp     *message.Message
	rejected *message.RejectionKind
	done     chan struct{}
}

func newCapturingSink() *capturingSink {
	return &capturingSink{done: make(chan struct{})}
}

func (c *capturingSink) Complete(resp message.Message) {
	c.mu.Lock()
	c.resp = &resp
	c.mu.Unlock()
	close(c.done)
}

func (c *capturingSink) Reject(kind message.RejectionKind, _ error) {
	c.mu.Lock()
	c.rejected = &kind
	c.mu.Unlock()
	close(c.done)
}

func (c *capturingSink) Timeout() {
	c.mu.Lock()
	c.mu.Unlock()
	close(c.done)
}

func (c *capturingSink) await(t *testing.T) message.Message {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("capturingSink: timed out waiting for terminal event")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rejected != nil {
		t.Fatalf("capturingSink: request rejected with %v", *c.rejected)
	}
	require.NotNil(t, c.resp)
	return *c.resp
}

func TestSilo_ActivateAndDispatchLocally(t *testing.T) {
	// Registered before newTestSilo's cleanup, so it runs after the silos stop.
	t.Cleanup(func() { goleak.VerifyNone(t) })
	cluster := NewCluster()
	s := newTestSilo(t, "127.0.0.1", 9601, cluster)
	ctx := context.Background()

	grain := identity.NewString("counter", "alice")
	addr, existed, err := s.Activate(ctx, grain)
	require.NoError(t, err)
	require.False(t, existed)
	require.True(t, addr.Silo.Equal(s.cfg.Self))

	sink := newCapturingSink()
	caller := identity.NewString("caller", "test")
	require.NoError(t, s.Router.SendRequest(ctx, caller, grain, incrBody{By: 7}, router.SendOptions{}, sink))
	resp := sink.await(t)
	require.Equal(t, int64(7), resp.Body)

	sink2 := newCapturingSink()
	require.NoError(t, s.Router.SendRequest(ctx, caller, grain, readBody{}, router.SendOptions{}, sink2))
	resp2 := sink2.await(t)
	require.Equal(t, int64(7), resp2.Body)
}

func TestSilo_ActivateIsIdempotentAcrossCallers(t *testing.T) {
	// Registered before newTestSilo's cleanup, so it runs after the silos stop.
	t.Cleanup(func() { goleak.VerifyNone(t) })
	cluster := NewCluster()
	s := newTestSilo(t, "127.0.0.1", 9602, cluster)
	ctx := context.Background()

	grain := identity.NewString("counter", "bob")
	first, _, err := s.Activate(ctx, grain)
	require.NoError(t, err)
	second, existed, err := s.Activate(ctx, grain)
	require.NoError(t, err)
	require.True(t, existed)
	require.True(t, first.Equal(second))
}

func TestSilo_DeactivateIdleRemovesActivationAndDirectoryEntry(t *testing.T) {
	// Registered before newTestSilo's cleanup, so it runs after the silos stop.
	t.Cleanup(func() { goleak.VerifyNone(t) })
	cluster := NewCluster()
	s := newTestSilo(t, "127.0.0.1", 9603, cluster)
	ctx := context.Background()

	grain := identity.NewString("counter", "carol")
	addr, _, err := s.Activate(ctx, grain)
	require.NoError(t, err)

	require.NoError(t, s.DeactivateIdle(ctx, addr))

	_, found, err := s.Directory.Lookup(ctx, grain)
	require.NoError(t, err)
	require.False(t, found)
}

func TestSilo_TwoSiloClusterRoutesAcrossProcesses(t *testing.T) {
	// Registered before newTestSilo's cleanup, so it runs after the silos stop.
	t.Cleanup(func() { goleak.VerifyNone(t) })
	cluster := NewCluster()
	s1 := newTestSilo(t, "127.0.0.1", 9611, cluster)
	s2 := newTestSilo(t, "127.0.0.1", 9612, cluster)
	ctx := context.Background()

	grain := identity.NewString("counter", "dave")

	addrFromS1, _, err := s1.Activate(ctx, grain)
	require.NoError(t, err)
	addrFromS2, _, err := s2.Activate(ctx, grain)
	require.NoError(t, err)
	require.True(t, addrFromS1.Equal(addrFromS2), "both silos must agree on the single owning activation")

	caller := identity.NewString("caller", "test")
	sink := newCapturingSink()

	owner := s1
	if addrFromS1.Silo.Equal(s2.cfg.Self) {
		owner = s2
	}
	requester := s1
	if owner == s1 {
		requester = s2
	}

	require.NoError(t, requester.Router.SendRequest(ctx, caller, grain, incrBody{By: 3}, router.SendOptions{}, sink))
	resp := sink.await(t)
	require.Equal(t, int64(3), resp.Body)
	_ = owner
}
