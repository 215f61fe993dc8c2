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

// Package silo wires the six core subsystems (membership, directory,
// placement, activation catalog, scheduler, router) and the transactional
// lock manager, plus the domain-stack collaborators (reminders, persistent
// state, streams), into one runnable silo process.
package silo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meshgrain/silo/address"
	"github.com/meshgrain/silo/catalog"
	"github.com/meshgrain/silo/directory"
	"github.com/meshgrain/silo/errors"
	"github.com/meshgrain/silo/identity"
	"github.com/meshgrain/silo/log"
	"github.com/meshgrain/silo/membership"
	"github.com/meshgrain/silo/message"
	"github.com/meshgrain/silo/placement"
	"github.com/meshgrain/silo/reminder"
	"github.com/meshgrain/silo/router"
	"github.com/meshgrain/silo/scheduler"
	"github.com/meshgrain/silo/state"
	"github.com/meshgrain/silo/stream"
	"github.com/meshgrain/silo/transport"
	"github.com/meshgrain/silo/txlock"
)

// Config bundles everything needed to build a Silo. Only Self, HostName,
// and Role are required; everything else falls back to an in-memory or
// default-tuned collaborator suitable for a single-process deployment or
// tests.
type Config struct {
	Self     address.Address
	HostName string
	Role     string

	Membership      membership.Config
	MembershipStore membership.Backend // defaults to membership.NewMemoryBackend()

	SchedulerWorkers int            // defaults to 4
	SchedulerPolicy  scheduler.Policy
	DirectoryCache   int // defaults to 4096
	CatalogStopWindow time.Duration // defaults to 5s
	CatalogCoolDown   time.Duration // defaults to 30s

	RouterOptions router.Options
	Placement     placement.Strategy // defaults to placement.HashBased{}

	TxLock txlock.Config

	ReminderServiceID string        // defaults to Self.String()
	ReminderStore     reminder.Store // defaults to reminder.NewMemoryStore()
	StateBackend      state.Backend  // defaults to state.NewMemoryBackend()
	StreamExpiry      time.Duration  // defaults to 5m

	Logger log.Logger
}

func (c *Config) setDefaults() {
	if c.Membership.HeartbeatPeriod <= 0 || c.Membership.ProbePeriod <= 0 {
		c.Membership = membership.DefaultConfig()
	}
	if c.MembershipStore == nil {
		c.MembershipStore = membership.NewMemoryBackend()
	}
	if c.SchedulerWorkers <= 0 {
		c.SchedulerWorkers = 4
	}
	if c.DirectoryCache <= 0 {
		c.DirectoryCache = 4096
	}
	if c.CatalogStopWindow <= 0 {
		c.CatalogStopWindow = 5 * time.Second
	}
	if c.CatalogCoolDown <= 0 {
		c.CatalogCoolDown = 30 * time.Second
	}
	if c.Placement == nil {
		c.Placement = placement.HashBased{}
	}
	if c.ReminderServiceID == "" {
		c.ReminderServiceID = c.Self.String()
	}
	if c.ReminderStore == nil {
		c.ReminderStore = reminder.NewMemoryStore()
	}
	if c.StateBackend == nil {
		c.StateBackend = state.NewMemoryBackend()
	}
	if c.StreamExpiry <= 0 {
		c.StreamExpiry = 5 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = log.DiscardLogger
	}
}

// Invoker dispatches one locally delivered request to an activated grain
// instance and produces its response body. Wired per grain type tag
// through Catalog.Register's factory and passed to Silo.RegisterGrainType
// alongside it: a build-time (type tag, method) table in place of
// reflection-based method dispatch.
type Invoker func(ctx context.Context, instance any, body any) (any, error)

// Silo is one runnable server process hosting a shard of the grain
// population: a struct gathering every subsystem constructed in New and
// JoinCluster, started in Start, stopped in Stop.
type Silo struct {
	cfg Config

	Membership *membership.Oracle
	Directory  *directory.Directory
	Catalog    *catalog.Catalog
	Pool       *scheduler.Pool
	Router     *router.Router
	TxLocks    *txlock.Registry
	Reminders  *reminder.Service
	Timers     *reminder.LocalTimers
	State      state.Backend
	Streams    *stream.Cache
	Codec      *transport.Codec

	mu        sync.Mutex
	groups    map[string]*scheduler.Group
	invokers  map[string]Invoker
	cluster   *Cluster
	activator RemoteActivator
	startedAt time.Time
}

// New constructs a Silo. Call JoinCluster then Start to bring it online.
func New(cfg Config) *Silo {
	cfg.setDefaults()

	s := &Silo{
		cfg:      cfg,
		groups:   make(map[string]*scheduler.Group),
		invokers: make(map[string]Invoker),
	}

	s.Catalog = catalog.New(cfg.CatalogStopWindow, cfg.CatalogCoolDown, cfg.Logger)
	s.Pool = scheduler.NewPool(cfg.SchedulerWorkers, cfg.Logger)
	s.TxLocks = txlock.NewRegistry(cfg.TxLock, func(string) txlock.CommitQueue { return nil }, cfg.Logger)
	s.State = cfg.StateBackend
	s.Streams = stream.NewCache(cfg.StreamExpiry)
	s.Codec = transport.NewCodec()

	return s
}

// JoinCluster wires this silo into an in-process Cluster: the loopback
// RemoteOwner/Prober adapter used by single-process multi-silo deployments
// and tests. Production cross-process deployments swap membership.Prober
// and directory.RemoteOwner for adapters over the Connection Manager
// (transport package) instead of calling JoinCluster.
func (s *Silo) JoinCluster(c *Cluster) {
	s.cluster = c
	s.Membership = membership.New(s.cfg.Self, s.cfg.HostName, s.cfg.Role, s.cfg.MembershipStore, c.proberFor(s), s.cfg.Membership, s.cfg.Logger)
	s.Directory = directory.New(s.cfg.Self, s.Membership, c.remoteOwnerFor(s), s.cfg.DirectoryCache, s.cfg.Logger)
	s.Router = router.New(s.cfg.Self, s.Directory, c.delivererFor(s), s.localHandler, s.cfg.RouterOptions, s.cfg.Logger)
	s.Reminders = reminder.New(s.cfg.ReminderServiceID, s.cfg.ReminderStore, remindersTarget{s}, s.cfg.Logger)
	s.Timers = reminder.NewLocalTimers(s.cfg.Logger)
	s.activator = c.activatorFor(s)
	c.register(s.cfg.Self, s)
}

// Start joins the membership protocol and launches every background
// subsystem: the oracle's heartbeat/probe loops, the router's timeout
// sweeper, the lock manager registry's per-grain exit loops (started
// lazily on first use), the reminder service, and local timers.
func (s *Silo) Start(ctx context.Context) error {
	if s.Membership == nil {
		return fmt.Errorf("silo: JoinCluster must be called before Start")
	}
	if err := s.Membership.Join(ctx); err != nil {
		return err
	}
	s.Membership.Start(ctx)
	s.Router.Start()
	s.Reminders.Start(ctx)
	s.Timers.Start(ctx)
	s.startedAt = time.Now()
	return nil
}

// Stop drains and halts every background subsystem in roughly reverse
// start order.
func (s *Silo) Stop(ctx context.Context) error {
	s.Timers.Stop()
	s.Reminders.Stop(ctx)
	s.Router.Stop()
	s.TxLocks.StopAll()
	s.Pool.Stop()
	return s.Membership.Stop(ctx)
}

// RegisterGrainType associates a grain type tag with its activation
// factory, lifecycle hooks, reentrancy policy, and message invoker.
func (s *Silo) RegisterGrainType(typeTag string, factory catalog.Factory, hooks catalog.Hooks, invoker Invoker) {
	s.Catalog.Register(typeTag, factory, hooks)
	s.mu.Lock()
	s.invokers[typeTag] = invoker
	s.mu.Unlock()
}

// groupFor returns (creating if necessary) the scheduler Group backing
// grain's activation, along with the policy registered for its type.
func (s *Silo) groupFor(grainKey string) *scheduler.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[grainKey]
	if !ok {
		g = scheduler.NewGroup(grainKey, s.cfg.SchedulerPolicy, s.Pool.Notify)
		s.groups[grainKey] = g
	}
	return g
}

// dropGroup removes a deactivated activation's scheduler group, called
// after Catalog.Deactivate.
func (s *Silo) dropGroup(grainKey string) {
	s.mu.Lock()
	delete(s.groups, grainKey)
	s.mu.Unlock()
}

// localHandler is wired as the Router's LocalHandler: it resolves (or
// creates) the target activation, enqueues a KindRequest work item on its
// scheduler Group, and blocks until that turn produces a response or error,
// turning the scheduler's async queueing back into Router's synchronous
// dispatch contract.
func (s *Silo) localHandler(ctx context.Context, msg message.Message) (message.Message, error) {
	lookup, found, err := s.Directory.Lookup(ctx, msg.Header.TargetGrain)
	if err != nil {
		return message.Message{}, err
	}
	if !found || !lookup.Silo.Equal(s.cfg.Self) {
		return message.Message{}, errors.ErrStaleActivation
	}

	activation, _, err := s.Catalog.GetOrCreate(ctx, lookup)
	if err != nil {
		return message.Message{}, err
	}

	s.mu.Lock()
	invoker, ok := s.invokers[msg.Header.TargetGrain.TypeTag]
	s.mu.Unlock()
	if !ok {
		return message.Message{}, errors.ErrGrainNotRegistered
	}

	group := s.groupFor(msg.Header.TargetGrain.String())

	type outcome struct {
		body any
		err  error
	}
	done := make(chan outcome, 1)
	item := scheduler.WorkItem{
		Kind:              scheduler.KindRequest,
		RootCorrelationID: msg.Header.CorrelationID,
		External:          true,
		Run: func() {
			body, err := invoker(ctx, activation.Instance, msg.Body)
			done <- outcome{body: body, err: err}
		},
	}
	if !group.Enqueue(item) {
		return message.Message{}, errors.ErrDeactivating
	}

	select {
	case out := <-done:
		if out.err != nil {
			return message.Message{}, out.err
		}
		return message.Message{
			Header: message.Header{
				SendingGrain:  msg.Header.TargetGrain,
				TargetGrain:   msg.Header.SendingGrain,
				SendingSilo:   s.cfg.Self,
				TargetSilo:    msg.Header.SendingSilo,
				CorrelationID: msg.Header.CorrelationID,
				Direction:     message.Response,
			},
			Body: out.body,
		}, nil
	case <-ctx.Done():
		return message.Message{}, ctx.Err()
	}
}

// DeactivateIdle deactivates addr with ReasonIdle and drops its scheduler
// group, the passivation sweep's per-activation action.
func (s *Silo) DeactivateIdle(ctx context.Context, addr identity.ActivationAddress) error {
	if err := s.Catalog.Deactivate(ctx, addr, catalog.ReasonIdle); err != nil {
		return err
	}
	s.dropGroup(addr.Grain.String())
	return s.Directory.Unregister(ctx, addr)
}

// remindersTarget adapts Silo to reminder.Target: a fired reminder is
// delivered into the grain's activation exactly like an ordinary request,
// by addressing it through the same local dispatch path localHandler uses.
type remindersTarget struct{ s *Silo }

func (t remindersTarget) FireReminder(ctx context.Context, grainID identity.GrainIdentity, name string) error {
	_, found, err := t.s.Directory.Lookup(ctx, grainID)
	if err != nil {
		return err
	}
	if !found {
		return errors.ErrActivationNotFound
	}
	t.s.mu.Lock()
	invoker, ok := t.s.invokers[grainID.TypeTag]
	t.s.mu.Unlock()
	if !ok {
		return errors.ErrGrainNotRegistered
	}

	activation, _, err := t.s.Catalog.GetOrCreate(ctx, identity.ActivationAddress{Grain: grainID, Silo: t.s.cfg.Self})
	if err != nil {
		return err
	}
	group := t.s.groupFor(grainID.String())
	done := make(chan error, 1)
	group.Enqueue(scheduler.WorkItem{
		Kind:     scheduler.KindTimer,
		External: true,
		Run: func() {
			_, err := invoker(ctx, activation.Instance, reminderFired{Name: name})
			done <- err
		},
	})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reminderFired is the invoker body delivered when a registered reminder
// ticks, letting grain code distinguish it from an ordinary request by type.
type reminderFired struct {
	Name string
}
