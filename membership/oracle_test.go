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

package membership_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/meshgrain/silo/address"
	"github.com/meshgrain/silo/membership"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProber struct {
	down map[string]bool
}

func (f *fakeProber) Probe(_ context.Context, target address.Address) error {
	if f.down[target.String()] {
		return context.DeadlineExceeded
	}
	return nil
}

func newTestOracle(t *testing.T, self address.Address, backend *membership.MemoryBackend, prober membership.Prober) *membership.Oracle {
	t.Helper()
	cfg := membership.DefaultConfig()
	cfg.HeartbeatPeriod = 20 * time.Millisecond
	cfg.ProbePeriod = 20 * time.Millisecond
	cfg.SuspicionWindow = time.Second
	cfg.SuspicionThreshold = 1
	return membership.New(self, "host", "cluster-a", backend, prober, cfg, nil)
}

func TestOracleJoinTransitionsToActive(t *testing.T) {
	backend := membership.NewMemoryBackend()
	self := address.New("127.0.0.1", 9001, 1)
	o := newTestOracle(t, self, backend, &fakeProber{})

	require.NoError(t, o.Join(context.Background()))

	table, err := backend.ReadAll(context.Background())
	require.NoError(t, err)
	entry, ok := table.ByAddress(self)
	require.True(t, ok)
	require.Equal(t, membership.Active, entry.Status)
}

func TestTableVersionMonotonicallyIncreases(t *testing.T) {
	backend := membership.NewMemoryBackend()
	self := address.New("127.0.0.1", 9002, 1)
	o := newTestOracle(t, self, backend, &fakeProber{})

	require.NoError(t, o.Join(context.Background()))
	table1, _ := backend.ReadAll(context.Background())

	require.NoError(t, o.CleanupDefunct(context.Background()))
	// A second transition bumps the version again.
	require.NoError(t, backendSelfShutdown(o))
	table2, _ := backend.ReadAll(context.Background())

	require.Greater(t, table2.Version, table1.Version)
}

func backendSelfShutdown(o *membership.Oracle) error {
	return o.Stop(context.Background())
}

func TestSuspicionMarksPeerDeadAfterThreshold(t *testing.T) {
	backend := membership.NewMemoryBackend()
	s1 := address.New("127.0.0.1", 9101, 1)
	s2 := address.New("127.0.0.1", 9102, 1)

	prober1 := &fakeProber{down: map[string]bool{s2.String(): true}}
	o1 := newTestOracle(t, s1, backend, prober1)
	o2 := newTestOracle(t, s2, backend, &fakeProber{})

	ctx := context.Background()
	require.NoError(t, o1.Join(ctx))
	require.NoError(t, o2.Join(ctx))

	o1.Start(ctx)
	defer func() { _ = o1.Stop(ctx) }()

	require.Eventually(t, func() bool {
		table, err := backend.ReadAll(ctx)
		require.NoError(t, err)
		entry, ok := table.ByAddress(s2)
		return ok && entry.Status == membership.Dead
	}, 2*time.Second, 10*time.Millisecond)
}
