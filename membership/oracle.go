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

package membership

import (
	"context"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"go.uber.org/multierr"

	"github.com/meshgrain/silo/address"
	"github.com/meshgrain/silo/errors"
	"github.com/meshgrain/silo/hash"
	"github.com/meshgrain/silo/log"
)

// Config tunes the Oracle's protocol timings.
type Config struct {
	HeartbeatPeriod    time.Duration
	ProbePeriod        time.Duration
	SuspicionWindow    time.Duration
	SuspicionThreshold int
	ProbeFanout        int
	DefunctRetention   time.Duration
	MaxContentionRetry int
}

// DefaultConfig returns sane protocol timings for tests and small clusters.
func DefaultConfig() Config {
	return Config{
		HeartbeatPeriod:    2 * time.Second,
		ProbePeriod:        3 * time.Second,
		SuspicionWindow:    10 * time.Second,
		SuspicionThreshold: 2,
		ProbeFanout:        3,
		DefunctRetention:   24 * time.Hour,
		MaxContentionRetry: 5,
	}
}

// Prober is the narrow interface the Oracle uses to actually contact a peer.
// Production silos implement this over the Connection Manager (transport
// package); tests substitute a fake.
type Prober interface {
	Probe(ctx context.Context, target address.Address) error
}

// Oracle drives the membership protocol: it owns no state of its own beyond
// bookkeeping of the self row; all durable state lives in the Backend.
type Oracle struct {
	self    address.Address
	hostName string
	role    string
	backend Backend
	prober  Prober
	cfg     Config
	logger  log.Logger

	mu      sync.Mutex
	etag    string
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New constructs an Oracle for the given silo. Start must be called to begin
// the heartbeat/probe protocol.
func New(self address.Address, hostName, role string, backend Backend, prober Prober, cfg Config, logger log.Logger) *Oracle {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Oracle{
		self:     self,
		hostName: hostName,
		role:     role,
		backend:  backend,
		prober:   prober,
		cfg:      cfg,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Join inserts the self row as Joining, then transitions to Active: the
// on-silo-start protocol step.
func (o *Oracle) Join(ctx context.Context) error {
	if err := o.backend.Initialize(ctx, 0); err != nil {
		return err
	}

	entry := Entry{
		Silo:         o.self,
		HostName:     o.hostName,
		Role:         o.role,
		Status:       Joining,
		StartTime:    time.Now(),
		IAmAliveTime: time.Now(),
	}

	if err := o.withContentionRetry(ctx, func() (bool, error) {
		table, err := o.backend.ReadAll(ctx)
		if err != nil {
			return false, err
		}
		ok, err := o.backend.InsertRow(ctx, entry, table.Version)
		return ok, err
	}); err != nil {
		return err
	}

	return o.transitionSelf(ctx, Active)
}

// Start launches the background heartbeat and probe loops. It returns
// immediately; call Stop to end them.
func (o *Oracle) Start(ctx context.Context) {
	o.wg.Add(2)
	go o.heartbeatLoop(ctx)
	go o.probeLoop(ctx)
}

// Stop transitions the self row through ShuttingDown -> Stopping -> Dead and
// halts the background loops. A silo that leaves never rejoins with the
// same generation.
func (o *Oracle) Stop(ctx context.Context) error {
	close(o.stopCh)
	o.wg.Wait()
	var err error
	for _, s := range []Status{ShuttingDown, Stopping, Dead} {
		if e := o.transitionSelf(ctx, s); e != nil {
			err = multierr.Append(err, e)
		}
	}
	return err
}

func (o *Oracle) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.HeartbeatPeriod)
	defer ticker.Stop()
	defer o.wg.Done()
	for {
		select {
		case <-o.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			entry := Entry{Silo: o.self, IAmAliveTime: time.Now()}
			if err := o.backend.UpdateIAmAlive(ctx, entry); err != nil {
				o.logger.Warnf("heartbeat write failed: %v", err)
			}
		}
	}
}

func (o *Oracle) probeLoop(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.ProbePeriod)
	defer ticker.Stop()
	defer o.wg.Done()
	for {
		select {
		case <-o.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.probeRound(ctx); err != nil {
				o.logger.Warnf("probe round failed: %v", err)
			}
			if dead, err := o.observeSelfDead(ctx); err != nil {
				o.logger.Warnf("self-status check failed: %v", err)
			} else if dead {
				o.logger.Errorf("silo %s observed itself marked Dead; exiting", o.self)
				return
			}
		}
	}
}

// probeRound probes this silo's deterministic successor subset on the
// address ring and records suspicion on failure.
func (o *Oracle) probeRound(ctx context.Context) error {
	table, err := o.backend.ReadAll(ctx)
	if err != nil {
		return err
	}

	actives := table.ActiveSilos()
	keys := make([]string, 0, len(actives))
	for _, a := range actives {
		keys = append(keys, a.String())
	}
	ring := hash.NewRing(keys)
	targets := ring.Successors([]byte(o.self.String()), o.cfg.ProbeFanout)

	var errs error
	for _, t := range targets {
		if t == o.self.String() {
			continue
		}
		target := findByString(actives, t)
		if target.IsZero() {
			continue
		}
		if err := o.prober.Probe(ctx, target); err != nil {
			if suspErr := o.suspect(ctx, target); suspErr != nil {
				errs = multierr.Append(errs, suspErr)
			}
		}
	}
	return errs
}

func findByString(addrs []address.Address, s string) address.Address {
	for _, a := range addrs {
		if a.String() == s {
			return a
		}
	}
	return address.Address{}
}

// suspect records self as a suspector of target, then, if the suspector
// count within the sliding window reaches the configured threshold, marks
// target Dead under version-guarded CAS.
func (o *Oracle) suspect(ctx context.Context, target address.Address) error {
	return o.withContentionRetry(ctx, func() (bool, error) {
		table, err := o.backend.ReadAll(ctx)
		if err != nil {
			return false, err
		}
		entry, ok := table.ByAddress(target)
		if !ok || entry.Status == Dead {
			return true, nil
		}

		now := time.Now()
		windowStart := now.Add(-o.cfg.SuspicionWindow)
		fresh := make([]Suspector, 0, len(entry.Suspectors)+1)
		found := false
		for _, s := range entry.Suspectors {
			if s.SuspectedAt.Before(windowStart) {
				continue
			}
			if s.Silo.Equal(o.self) {
				found = true
				s.SuspectedAt = now
			}
			fresh = append(fresh, s)
		}
		if !found {
			fresh = append(fresh, Suspector{Silo: o.self, SuspectedAt: now})
		}
		entry.Suspectors = fresh

		if len(distinctSuspectors(fresh)) >= o.cfg.SuspicionThreshold {
			entry.Status = Dead
		}

		return o.casUpdate(ctx, entry, table.Version)
	})
}

func distinctSuspectors(suspectors []Suspector) map[string]struct{} {
	out := make(map[string]struct{}, len(suspectors))
	for _, s := range suspectors {
		out[s.Silo.String()] = struct{}{}
	}
	return out
}

func (o *Oracle) casUpdate(ctx context.Context, entry Entry, tableVersion uint64) (bool, error) {
	etag, ok := o.currentEtag(ctx, entry.Silo)
	if !ok {
		return false, nil
	}
	return o.backend.UpdateRow(ctx, entry, etag, tableVersion)
}

func (o *Oracle) currentEtag(ctx context.Context, silo address.Address) (string, bool) {
	if memBackend, ok := o.backend.(*MemoryBackend); ok {
		return memBackend.Etag(silo)
	}
	row, err := o.backend.ReadRow(ctx, Entry{Silo: silo})
	if err != nil || len(row.Entries) == 0 {
		return "", false
	}
	return row.ETag, true
}

func (o *Oracle) transitionSelf(ctx context.Context, status Status) error {
	return o.withContentionRetry(ctx, func() (bool, error) {
		table, err := o.backend.ReadAll(ctx)
		if err != nil {
			return false, err
		}
		entry, ok := table.ByAddress(o.self)
		if !ok {
			return false, errors.ErrMembershipRowAbsent
		}
		entry.Status = status
		return o.casUpdate(ctx, entry, table.Version)
	})
}

// observeSelfDead reports whether the current table shows this silo as Dead.
func (o *Oracle) observeSelfDead(ctx context.Context) (bool, error) {
	table, err := o.backend.ReadAll(ctx)
	if err != nil {
		return false, err
	}
	entry, ok := table.ByAddress(o.self)
	if !ok {
		return false, nil
	}
	return entry.Status == Dead, nil
}

// withContentionRetry retries fn, which returns (committed, err), using
// bounded exponential backoff on contention (committed == false, err == nil)
// and on transient backend errors.
func (o *Oracle) withContentionRetry(ctx context.Context, fn func() (bool, error)) error {
	retrier := retry.NewRetrier(o.cfg.MaxContentionRetry, 10*time.Millisecond, 500*time.Millisecond)
	return retrier.Run(func() error {
		committed, err := fn()
		if err != nil {
			return err
		}
		if !committed {
			return errors.ErrMembershipContention
		}
		return nil
	})
}

// CleanupDefunct removes Dead rows whose IAmAliveTime predates the retention
// window, an operator-hygiene cleanup operation.
func (o *Oracle) CleanupDefunct(ctx context.Context) error {
	return o.backend.CleanupDefunct(ctx, time.Now().Add(-o.cfg.DefunctRetention))
}

// ReadAll exposes the current table to collaborators (directory ownership
// ring, placement eligible-silo set).
func (o *Oracle) ReadAll(ctx context.Context) (Table, error) {
	return o.backend.ReadAll(ctx)
}
