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

package router_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meshgrain/silo/address"
	"github.com/meshgrain/silo/directory"
	"github.com/meshgrain/silo/hash"
	"github.com/meshgrain/silo/identity"
	"github.com/meshgrain/silo/membership"
	"github.com/meshgrain/silo/message"
	"github.com/meshgrain/silo/router"
)

type noopProber struct{}

func (noopProber) Probe(context.Context, address.Address) error { return nil }

type loopbackRemote struct{}

func (loopbackRemote) RemoteRegister(context.Context, address.Address, identity.ActivationAddress) (identity.ActivationAddress, error) {
	panic("single-node test never routes remotely")
}
func (loopbackRemote) RemoteLookup(context.Context, address.Address, identity.GrainIdentity) (identity.ActivationAddress, bool, error) {
	panic("single-node test never routes remotely")
}
func (loopbackRemote) RemoteUnregister(context.Context, address.Address, identity.ActivationAddress) error {
	panic("single-node test never routes remotely")
}

// acceptingRemote stands in for a remote directory owner that accepts every
// registration sent to it; its lookups and unregisters still panic.
type acceptingRemote struct{ loopbackRemote }

func (acceptingRemote) RemoteRegister(_ context.Context, _ address.Address, activation identity.ActivationAddress) (identity.ActivationAddress, error) {
	return activation, nil
}

type harness struct {
	self address.Address
	dir  *directory.Directory
	r    *router.Router
}

func newHarness(t *testing.T, local router.LocalHandler, deliv router.Deliverer) *harness {
	t.Helper()
	self := address.New("127.0.0.1", 9400, 1)
	backend := membership.NewMemoryBackend()
	oracle := membership.New(self, "h1", "silo", backend, noopProber{}, membership.DefaultConfig(), nil)
	require.NoError(t, oracle.Join(context.Background()))

	dir := directory.New(self, oracle, loopbackRemote{}, 64, nil)
	opts := router.DefaultOptions()
	opts.ResponseTimeout = 150 * time.Millisecond
	opts.SweepInterval = 10 * time.Millisecond
	r := router.New(self, dir, deliv, local, opts, nil)
	r.Start()
	t.Cleanup(r.Stop)
	return &harness{self: self, dir: dir, r: r}
}

type recordingSink struct {
	mu       sync.Mutex
	resp     *message.Message
	rejected *message.RejectionKind
	timedOut bool
	done     chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{done: make(chan struct{})}
}

func (s *recordingSink) Complete(resp message.Message) {
	s.mu.Lock()
	s.resp = &resp
	s.mu.Unlock()
	close(s.done)
}

func (s *recordingSink) Reject(kind message.RejectionKind, _ error) {
	s.mu.Lock()
	s.rejected = &kind
	s.mu.Unlock()
	close(s.done)
}

func (s *recordingSink) Timeout() {
	s.mu.Lock()
	s.timedOut = true
	s.mu.Unlock()
	close(s.done)
}

func TestSendRequestCompletesLocallyHostedCall(t *testing.T) {
	local := func(_ context.Context, msg message.Message) (message.Message, error) {
		require.Equal(t, "ping", msg.Body)
		return message.Message{Body: "pong"}, nil
	}
	h := newHarness(t, local, nil)

	grain := identity.NewString("echo", "one")
	activation := identity.NewActivationAddress(grain, h.self, identity.NewActivationID())
	_, err := h.dir.Register(context.Background(), activation)
	require.NoError(t, err)

	sink := newRecordingSink()
	require.NoError(t, h.r.SendRequest(context.Background(), identity.NewString("caller", "x"), grain, "ping", router.SendOptions{}, sink))

	select {
	case <-sink.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for local completion")
	}
	require.NotNil(t, sink.resp)
	require.Equal(t, "pong", sink.resp.Body)
}

type noopDeliverer struct{}

func (noopDeliverer) Deliver(context.Context, message.Message) error { return nil }

// TestSendRequestTimesOutWhenNoResponseArrives exercises the sweeper: a
// local handler that never returns within the response timeout must still
// yield exactly one terminal event (Scenario: router correlation has
// exactly one terminal event per request).
func TestSendRequestTimesOutWhenNoResponseArrives(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	local := func(context.Context, message.Message) (message.Message, error) {
		<-block
		return message.Message{}, nil
	}
	h := newHarness(t, local, noopDeliverer{})

	grain := identity.NewString("silent", "one")
	activation := identity.NewActivationAddress(grain, h.self, identity.NewActivationID())
	_, err := h.dir.Register(context.Background(), activation)
	require.NoError(t, err)

	sink := newRecordingSink()
	require.NoError(t, h.r.SendRequest(context.Background(), identity.NewString("caller", "x"), grain, "ping", router.SendOptions{}, sink))

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected sweeper to time out the callback")
	}
	require.True(t, sink.timedOut)
}

// TestMaxRetriesExceededSurfacesTerminalRejection exercises retry/fail: a
// remote deliverer that always errors must eventually surface a terminal
// rejection once MaxRetries is exceeded, never silently dropping the
// callback (Router correlation: exactly one terminal event per request).
func TestMaxRetriesExceededSurfacesTerminalRejection(t *testing.T) {
	self := address.New("127.0.0.1", 9401, 1)
	other := address.New("127.0.0.1", 9402, 1)

	backend := membership.NewMemoryBackend()
	oracle := membership.New(self, "h1", "silo", backend, noopProber{}, membership.DefaultConfig(), nil)
	require.NoError(t, oracle.Join(context.Background()))
	otherOracle := membership.New(other, "h2", "silo", backend, noopProber{}, membership.DefaultConfig(), nil)
	require.NoError(t, otherOracle.Join(context.Background()))

	dir := directory.New(self, oracle, acceptingRemote{}, 64, nil)

	var attempts int32
	failingDeliverer := deliverFunc(func(context.Context, message.Message) error {
		attempts++
		return errDeliveryFailed
	})

	opts := router.DefaultOptions()
	opts.ResponseTimeout = 2 * time.Second
	opts.MaxRetries = 2
	opts.SweepInterval = 10 * time.Millisecond
	r := router.New(self, dir, failingDeliverer, nil, opts, nil)
	r.Start()
	t.Cleanup(r.Stop)

	grain := grainOwnedBy(t, []address.Address{self, other}, other)
	activation := identity.NewActivationAddress(grain, other, identity.NewActivationID())
	_, err := dir.Register(context.Background(), activation)
	require.NoError(t, err)

	sink := newRecordingSink()
	require.NoError(t, r.SendRequest(context.Background(), identity.NewString("caller", "x"), grain, "ping", router.SendOptions{}, sink))

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected exhausted retries to surface a terminal rejection")
	}
	require.NotNil(t, sink.rejected)
	require.GreaterOrEqual(t, attempts, int32(1))
}

// grainOwnedBy finds a grain identity whose consistent-hash ring owner
// among members is want, using the same ring construction the directory
// uses internally for partitioning.
func grainOwnedBy(t *testing.T, members []address.Address, want address.Address) identity.GrainIdentity {
	t.Helper()
	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = m.String()
	}
	ring := hash.NewRing(keys)
	for i := 0; i < 10000; i++ {
		grain := identity.NewString("remote", string(rune('a'+i%26))+string(rune('0'+i/26)))
		owner, ok := ring.Owner(grain.HashKey())
		if ok && owner == want.String() {
			return grain
		}
	}
	t.Fatal("could not find a grain owned by the target silo")
	return identity.GrainIdentity{}
}

type deliverFunc func(context.Context, message.Message) error

func (f deliverFunc) Deliver(ctx context.Context, msg message.Message) error { return f(ctx, msg) }

var errDeliveryFailed = errDelivery{}

type errDelivery struct{}

func (errDelivery) Error() string { return "delivery failed" }
