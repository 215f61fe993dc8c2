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

package catalog

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/meshgrain/silo/errors"
	"github.com/meshgrain/silo/identity"
	"github.com/meshgrain/silo/log"
)

// Factory creates a new grain instance for the given identity. It is looked
// up by grain type tag, a build-time dispatch table in place of runtime
// reflection.
type Factory func(identity.GrainIdentity) (any, error)

// Hooks are the lifecycle callbacks run around an activation's lifetime.
type Hooks struct {
	// OnActivate runs before the first user message is dispatched. A
	// returned error fails the triggering request retryably and removes
	// the partially created activation.
	OnActivate func(ctx context.Context, instance any) error
	// OnDeactivate runs after the last message and before catalog
	// removal.
	OnDeactivate func(ctx context.Context, instance any, reason DeactivationReason) error
}

// Catalog creates, indexes, and destroys activations hosted on this silo.
type Catalog struct {
	logger      log.Logger
	stopWindow  time.Duration
	coolDown    time.Duration
	factories   map[string]Factory
	hooks       map[string]Hooks

	mu          sync.Mutex
	activations map[string]*Activation       // key: activation address string
	byGrain     map[string]*Activation       // key: grain string, the one locally hosted activation
	creating    map[string]chan struct{}     // grain key -> signal for in-flight creation
	coolingDown map[string]time.Time         // grain key -> cool-down expiry

	created atomic.Int64 // lifetime count of successful activations, for load reporting
}

// New constructs an empty Catalog.
func New(stopWindow, coolDown time.Duration, logger log.Logger) *Catalog {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Catalog{
		logger:      logger,
		stopWindow:  stopWindow,
		coolDown:    coolDown,
		factories:   make(map[string]Factory),
		hooks:       make(map[string]Hooks),
		activations: make(map[string]*Activation),
		byGrain:     make(map[string]*Activation),
		creating:    make(map[string]chan struct{}),
		coolingDown: make(map[string]time.Time),
	}
}

// Register associates a grain type tag with the factory and lifecycle hooks
// used to materialize and manage its activations.
func (c *Catalog) Register(typeTag string, factory Factory, hooks Hooks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[typeTag] = factory
	c.hooks[typeTag] = hooks
}

// GetOrCreate returns the existing local activation for grain if one exists,
// or creates one. Concurrent callers observe exactly one activation:
// the first caller creates it while later callers for the same grain wait
// on the same in-flight creation.
func (c *Catalog) GetOrCreate(ctx context.Context, addr identity.ActivationAddress) (*Activation, bool, error) {
	grainKey := addr.Grain.String()

	for {
		c.mu.Lock()
		if existing, ok := c.byGrain[grainKey]; ok {
			c.mu.Unlock()
			return existing, true, nil
		}
		if until, cooling := c.coolingDown[grainKey]; cooling {
			if time.Now().Before(until) {
				c.mu.Unlock()
				return nil, false, errors.ErrActivationFailed
			}
			delete(c.coolingDown, grainKey)
		}
		if wait, inFlight := c.creating[grainKey]; inFlight {
			c.mu.Unlock()
			<-wait
			continue
		}

		signal := make(chan struct{})
		c.creating[grainKey] = signal
		c.mu.Unlock()

		activation, err := c.create(ctx, addr)

		c.mu.Lock()
		delete(c.creating, grainKey)
		if err == nil {
			c.byGrain[grainKey] = activation
			c.activations[addr.String()] = activation
		} else if errors.Is(err, errors.ErrActivationFailed) {
			reason := ReasonApplicationError
			if CoolDownReasons[reason] {
				c.coolingDown[grainKey] = time.Now().Add(c.coolDown)
			}
		}
		c.mu.Unlock()
		close(signal)

		if err != nil {
			return nil, false, err
		}
		return activation, false, nil
	}
}

func (c *Catalog) create(ctx context.Context, addr identity.ActivationAddress) (*Activation, error) {
	c.mu.Lock()
	factory, ok := c.factories[addr.Grain.TypeTag]
	hooks := c.hooks[addr.Grain.TypeTag]
	c.mu.Unlock()
	if !ok {
		return nil, errors.ErrGrainNotRegistered
	}

	instance, err := factory(addr.Grain)
	if err != nil {
		return nil, errors.ErrActivationFailed
	}

	activation := newActivation(addr, instance)
	if hooks.OnActivate != nil {
		if err := hooks.OnActivate(ctx, instance); err != nil {
			c.logger.Warnf("onActivate failed for %s: %v", addr, err)
			return nil, errors.ErrActivationFailed
		}
	}
	activation.setStatus(StatusRunning)
	c.created.Inc()
	return activation, nil
}

// Created returns the lifetime count of activations this catalog has
// successfully created, for load reporting.
func (c *Catalog) Created() int64 {
	return c.created.Load()
}

// Find returns the activation for addr if it is still present in the
// catalog.
func (c *Catalog) Find(addr identity.ActivationAddress) (*Activation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.activations[addr.String()]
	return a, ok
}

// Deactivate begins removing an activation: it marks the activation's stop
// window, runs OnDeactivate, and removes it from the catalog's indexes. The
// caller is responsible for draining the activation's scheduler queue
// before calling Deactivate, or for accepting that already-queued
// continuations still run during the stop window.
func (c *Catalog) Deactivate(ctx context.Context, addr identity.ActivationAddress, reason DeactivationReason) error {
	c.mu.Lock()
	activation, ok := c.activations[addr.String()]
	c.mu.Unlock()
	if !ok {
		return errors.ErrActivationNotFound
	}

	activation.BeginStopWindow(c.stopWindow)

	c.mu.Lock()
	hooks := c.hooks[addr.Grain.TypeTag]
	c.mu.Unlock()

	var hookErr error
	if hooks.OnDeactivate != nil {
		hookErr = hooks.OnDeactivate(ctx, activation.Instance, reason)
	}

	c.mu.Lock()
	delete(c.activations, addr.String())
	if current, ok := c.byGrain[addr.Grain.String()]; ok && current == activation {
		delete(c.byGrain, addr.Grain.String())
	}
	if CoolDownReasons[reason] {
		c.coolingDown[addr.Grain.String()] = time.Now().Add(c.coolDown)
	}
	c.mu.Unlock()

	activation.setStatus(StatusRemoved)

	if hookErr != nil {
		c.logger.Warnf("onDeactivate failed for %s (reason=%s): %v", addr, reason, hookErr)
		return hookErr
	}
	return nil
}

// Count returns the number of activations currently hosted by this silo,
// consumed by the activity-count load-aware placement strategy.
func (c *Catalog) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.activations)
}
