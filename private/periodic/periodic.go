// Copyright 2024 SRxLab
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package periodic runs a task at fixed intervals on a dedicated goroutine.
// It backs maintenance work such as the SKI cache prune pass.
package periodic

import (
	"context"
	"sync"
	"time"

	"github.com/srxlab/bgpsecval/pkg/log"
	"github.com/srxlab/bgpsecval/pkg/metrics"
)

// Task is a unit of periodic work.
type Task interface {
	// Run executes the task once. Implementations should honor ctx, which
	// carries the per-run timeout.
	Run(context.Context)
	// Name returns a unique identifier used in logs and metrics.
	Name() string
}

// Event types reported through Metrics.Events.
const (
	// EventRun is a completed periodic execution.
	EventRun = "run"
	// EventTrigger is an execution forced through TriggerRun.
	EventTrigger = "trigger"
	// EventStop is a graceful shutdown through Stop.
	EventStop = "stop"
	// EventKill is a forced shutdown through Kill.
	EventKill = "kill"
)

// Metrics instruments a runner. Nil members are ignored.
type Metrics struct {
	// Events returns the counter for the given event type.
	Events func(eventType string) metrics.Counter
	// Runtime tracks the duration of the last run in seconds.
	Runtime metrics.Gauge
	// Period tracks the configured period in seconds.
	Period metrics.Gauge
}

func (m *Metrics) event(eventType string) {
	if m == nil || m.Events == nil {
		return
	}
	metrics.CounterInc(m.Events(eventType))
}

// Runner executes a task periodically until stopped.
type Runner struct {
	task     Task
	timeout  time.Duration
	metrics  *Metrics
	logger   log.Logger
	trigger  chan struct{}
	stop     chan struct{}
	finished chan struct{}
	cancel   context.CancelFunc
	stopOnce sync.Once
	killOnce sync.Once
}

// Start runs the task on a new goroutine with the given period. Each run is
// bounded by timeout through its context.
func Start(task Task, period, timeout time.Duration) *Runner {
	return StartWithMetrics(task, nil, period, timeout)
}

// StartWithMetrics is Start with runner instrumentation attached.
func StartWithMetrics(task Task, m *Metrics, period, timeout time.Duration) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		task:     task,
		timeout:  timeout,
		metrics:  m,
		logger:   log.New("task", task.Name()),
		trigger:  make(chan struct{}),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
		cancel:   cancel,
	}
	if m != nil {
		metrics.GaugeSet(m.Period, period.Seconds())
	}
	go func() {
		defer log.HandlePanic()
		r.runLoop(ctx, period)
	}()
	return r
}

// Stop shuts the runner down gracefully and blocks until a run in progress
// has finished.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
		r.metrics.event(EventStop)
	})
	<-r.finished
}

// Kill cancels the context of a run in progress and blocks until the loop
// has exited.
func (r *Runner) Kill() {
	r.killOnce.Do(func() {
		r.cancel()
		r.metrics.event(EventKill)
	})
	<-r.finished
}

// TriggerRun requests an immediate run. The request is dropped if the runner
// is mid-run or already stopped.
func (r *Runner) TriggerRun() {
	select {
	case r.trigger <- struct{}{}:
		r.metrics.event(EventTrigger)
	case <-r.finished:
	default:
	}
}

func (r *Runner) runLoop(ctx context.Context, period time.Duration) {
	defer close(r.finished)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		case <-r.trigger:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := time.Now()
	r.task.Run(runCtx)
	elapsed := time.Since(start)
	if r.metrics != nil {
		metrics.GaugeSet(r.metrics.Runtime, elapsed.Seconds())
	}
	r.metrics.event(EventRun)
	r.logger.Debug("Ran periodic task", "elapsed", elapsed)
}
