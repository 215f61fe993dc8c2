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

package catalog_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meshgrain/silo/address"
	"github.com/meshgrain/silo/catalog"
	"github.com/meshgrain/silo/identity"
)

type counterGrain struct{ n int }

func TestGetOrCreateIsIdempotentUnderConcurrency(t *testing.T) {
	c := catalog.New(time.Second, time.Second, nil)
	var created int32
	c.Register("counter", func(identity.GrainIdentity) (any, error) {
		atomic.AddInt32(&created, 1)
		return &counterGrain{}, nil
	}, catalog.Hooks{})

	silo := address.New("127.0.0.1", 9300, 1)
	grain := identity.NewString("counter", "c1")

	const n = 25
	var wg sync.WaitGroup
	wg.Add(n)
	results := make([]*catalog.Activation, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			addr := identity.NewActivationAddress(grain, silo, identity.NewActivationID())
			a, _, err := c.GetOrCreate(context.Background(), addr)
			require.NoError(t, err)
			results[i] = a
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&created))
	for i := 1; i < n; i++ {
		require.Same(t, results[0], results[i])
	}
}

func TestActivationFailureRemovesPartialActivationAndCoolsDown(t *testing.T) {
	c := catalog.New(time.Second, time.Hour, nil)
	c.Register("broken", func(identity.GrainIdentity) (any, error) {
		return &counterGrain{}, nil
	}, catalog.Hooks{
		OnActivate: func(context.Context, any) error { return assertErr },
	})

	silo := address.New("127.0.0.1", 9301, 1)
	grain := identity.NewString("broken", "b1")
	addr := identity.NewActivationAddress(grain, silo, identity.NewActivationID())

	_, _, err := c.GetOrCreate(context.Background(), addr)
	require.Error(t, err)

	_, found := c.Find(addr)
	require.False(t, found)

	// Still within cool-down: retrying immediately must fail retryably,
	// not re-invoke the broken factory.
	_, _, err = c.GetOrCreate(context.Background(), addr)
	require.Error(t, err)
}

func TestDeactivateDrainsAndRemovesFromIndex(t *testing.T) {
	c := catalog.New(10*time.Millisecond, time.Second, nil)
	var deactivated bool
	c.Register("counter", func(identity.GrainIdentity) (any, error) {
		return &counterGrain{}, nil
	}, catalog.Hooks{
		OnDeactivate: func(context.Context, any, catalog.DeactivationReason) error {
			deactivated = true
			return nil
		},
	})

	silo := address.New("127.0.0.1", 9302, 1)
	grain := identity.NewString("counter", "c2")
	addr := identity.NewActivationAddress(grain, silo, identity.NewActivationID())

	activation, _, err := c.GetOrCreate(context.Background(), addr)
	require.NoError(t, err)

	require.NoError(t, c.Deactivate(context.Background(), activation.Address, catalog.ReasonIdle))
	require.True(t, deactivated)

	_, found := c.Find(activation.Address)
	require.False(t, found)
}

var assertErr = &activationError{"boom"}

type activationError struct{ msg string }

func (e *activationError) Error() string { return e.msg }
