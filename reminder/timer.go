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
	"time"

	"github.com/google/uuid"
	"github.com/reugn/go-quartz/job"
	quartzlogger "github.com/reugn/go-quartz/logger"
	"github.com/reugn/go-quartz/quartz"

	"github.com/meshgrain/silo/log"
	"github.com/meshgrain/silo/scheduler"
)

// LocalTimers is the non-durable half of the Timer/Reminder Service
// component: one-shot and periodic wake-ups that enqueue a KindTimer
// WorkItem on a specific activation's scheduler.Group. Unlike a Service
// reminder, nothing here survives the activation's deactivation.
type LocalTimers struct {
	sched  quartz.Scheduler
	logger log.Logger
}

// NewLocalTimers constructs a LocalTimers. Call Start before scheduling.
func NewLocalTimers(logger log.Logger) *LocalTimers {
	if logger == nil {
		logger = log.DiscardLogger
	}
	sched, _ := quartz.NewStdScheduler(quartz.WithLogger(quartzlogger.NewSimpleLogger(nil, quartzlogger.LevelOff)))
	return &LocalTimers{sched: sched, logger: logger}
}

// Start launches the underlying quartz scheduler.
func (t *LocalTimers) Start(ctx context.Context) { t.sched.Start(ctx) }

// Stop halts the scheduler, dropping every still-pending local timer.
func (t *LocalTimers) Stop() {
	_ = t.sched.Clear()
	t.sched.Stop()
}

func (t *LocalTimers) enqueue(group *scheduler.Group, fn func()) {
	group.Enqueue(scheduler.WorkItem{
		Kind:     scheduler.KindTimer,
		External: true,
		Run:      fn,
	})
}

// ScheduleOnce arranges for fn to run once, as a KindTimer work item on
// group, after delay elapses.
func (t *LocalTimers) ScheduleOnce(group *scheduler.Group, delay time.Duration, fn func()) error {
	j := job.NewFunctionJob[bool](func(context.Context) (bool, error) {
		t.enqueue(group, fn)
		return true, nil
	})
	detail := quartz.NewJobDetail(j, quartz.NewJobKey(uuid.NewString()))
	return t.sched.ScheduleJob(detail, quartz.NewRunOnceTrigger(delay))
}

// SchedulePeriodic arranges for fn to run as a KindTimer work item on group
// every period, until the returned cancel func is called.
func (t *LocalTimers) SchedulePeriodic(group *scheduler.Group, period time.Duration, fn func()) (cancel func(), err error) {
	key := quartz.NewJobKey(uuid.NewString())
	j := job.NewFunctionJob[bool](func(context.Context) (bool, error) {
		t.enqueue(group, fn)
		return true, nil
	})
	detail := quartz.NewJobDetail(j, key)
	if err := t.sched.ScheduleJob(detail, quartz.NewSimpleTrigger(period)); err != nil {
		return nil, err
	}
	return func() { _ = t.sched.DeleteJob(key) }, nil
}
