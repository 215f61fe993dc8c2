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

package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reugn/go-quartz/job"
	quartzlogger "github.com/reugn/go-quartz/logger"
	"github.com/reugn/go-quartz/quartz"

	"github.com/meshgrain/silo/identity"
	"github.com/meshgrain/silo/log"
)

// Target is invoked once per reminder tick. Production silos wire this to a
// LocalHandler that routes into the grain's activation the same way an
// ordinary request would; tests substitute a fake.
type Target interface {
	FireReminder(ctx context.Context, grainID identity.GrainIdentity, name string) error
}

// Service is the durable, cluster-persistent side of the Timer/Reminder
// Service: it loads the reminders this silo currently owns (by ring-range
// ownership of their grain hash) and fires them on schedule via a
// go-quartz StdScheduler.
type Service struct {
	serviceID string
	store     Store
	target    Target
	logger    log.Logger

	mu      sync.Mutex
	sched   quartz.Scheduler
	started bool
}

// New constructs a Service. Call Start before Register/LoadOwnedRange.
func New(serviceID string, store Store, target Target, logger log.Logger) *Service {
	if logger == nil {
		logger = log.DiscardLogger
	}
	sched, _ := quartz.NewStdScheduler(quartz.WithLogger(quartzlogger.NewSimpleLogger(nil, quartzlogger.LevelOff)))
	return &Service{
		serviceID: serviceID,
		store:     store,
		target:    target,
		logger:    logger,
		sched:     sched,
	}
}

// Start launches the underlying quartz scheduler.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sched.Start(ctx)
	s.started = true
}

// Stop clears every scheduled job and halts the scheduler.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	_ = s.sched.Clear()
	s.sched.Stop()
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	s.sched.Wait(waitCtx)
	s.started = false
}

func jobKeyFor(serviceID string, grainID identity.GrainIdentity, name string) *quartz.JobKey {
	return quartz.NewJobKey(fmt.Sprintf("%s/%s/%s", serviceID, grainID.String(), name))
}

// Register upserts row into the Store and schedules its periodic tick.
// Callers pass row.ETag unset; the returned Row carries the fresh etag the
// Store minted.
func (s *Service) Register(ctx context.Context, row Row) (Row, error) {
	etag, err := s.store.Upsert(ctx, row)
	if err != nil {
		return Row{}, err
	}
	row.ETag = etag
	s.scheduleJob(row)
	return row, nil
}

// Unregister removes a reminder from the Store, conditional on etag, and
// cancels its scheduled tick.
func (s *Service) Unregister(ctx context.Context, grainID identity.GrainIdentity, name, etag string) error {
	if err := s.store.Remove(ctx, s.serviceID, grainID, name, etag); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.DeleteJob(jobKeyFor(s.serviceID, grainID, name))
}

// LoadOwnedRange schedules every reminder this silo currently owns, via the
// ring-range reminder query: begin < end names the half-open interval
// (begin, end]; begin >= end names the wraparound union used when this
// silo's ring range straddles the hash space's wrap point.
func (s *Service) LoadOwnedRange(ctx context.Context, begin, end uint32) error {
	rows, err := s.store.ReadRowsForHashRange(ctx, s.serviceID, begin, end)
	if err != nil {
		return err
	}
	for _, row := range rows {
		s.scheduleJob(row)
	}
	return nil
}

func (s *Service) scheduleJob(row Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}

	fn := job.NewFunctionJob[bool](func(ctx context.Context) (bool, error) {
		err := s.target.FireReminder(ctx, row.GrainID, row.Name)
		if err != nil {
			s.logger.Warnf("reminder: tick for %s/%s failed: %v", row.GrainID, row.Name, err)
		}
		return err == nil, err
	})
	detail := quartz.NewJobDetail(fn, jobKeyFor(row.ServiceID, row.GrainID, row.Name))

	var trigger quartz.Trigger
	if row.Period > 0 {
		trigger = quartz.NewSimpleTrigger(row.Period)
	} else {
		trigger = quartz.NewRunOnceTrigger(time.Until(row.StartAt))
	}
	if err := s.sched.ScheduleJob(detail, trigger); err != nil {
		s.logger.Warnf("reminder: failed to schedule %s/%s: %v", row.GrainID, row.Name, err)
	}
}
