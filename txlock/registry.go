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

package txlock

import (
	"sync"

	"github.com/meshgrain/silo/log"
)

// Registry lazily creates and starts one Manager per grain, since the lock
// manager is scoped per grain rather than shared across a silo.
type Registry struct {
	cfg    Config
	queues func(grainKey string) CommitQueue
	logger log.Logger

	mu       sync.Mutex
	managers map[string]*Manager
}

// NewRegistry builds a Registry. queues, if non-nil, is consulted for each
// newly created Manager's CommitQueue; a nil queues func leaves every
// Manager's commit queue unset (exits are computed but not enqueued
// anywhere, useful for tests exercising lock semantics in isolation).
func NewRegistry(cfg Config, queues func(grainKey string) CommitQueue, logger log.Logger) *Registry {
	return &Registry{
		cfg:      cfg,
		queues:   queues,
		logger:   logger,
		managers: make(map[string]*Manager),
	}
}

// Get returns the Manager for grainKey, creating and starting one on first
// use.
func (r *Registry) Get(grainKey string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.managers[grainKey]; ok {
		return m
	}
	var queue CommitQueue
	if r.queues != nil {
		queue = r.queues(grainKey)
	}
	m := New(r.cfg, queue, r.logger)
	m.Start()
	r.managers[grainKey] = m
	return m
}

// Drop stops and removes grainKey's Manager, if one exists. Called when the
// grain's last activation deactivates.
func (r *Registry) Drop(grainKey string) {
	r.mu.Lock()
	m, ok := r.managers[grainKey]
	if ok {
		delete(r.managers, grainKey)
	}
	r.mu.Unlock()
	if ok {
		m.Stop()
	}
}

// StopAll stops every Manager the Registry has created, for silo shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	managers := make([]*Manager, 0, len(r.managers))
	for k, m := range r.managers {
		managers = append(managers, m)
		delete(r.managers, k)
	}
	r.mu.Unlock()
	for _, m := range managers {
		m.Stop()
	}
}
