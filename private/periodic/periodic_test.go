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

package periodic_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/srxlab/bgpsecval/pkg/metrics"
	"github.com/srxlab/bgpsecval/pkg/private/xtest"
	"github.com/srxlab/bgpsecval/private/periodic"
)

type taskFunc func(context.Context)

func (tf taskFunc) Run(ctx context.Context) {
	tf(ctx)
}

func (tf taskFunc) Name() string {
	return "test_task"
}

func TestPeriodicExecution(t *testing.T) {
	events := metrics.NewTestCounter()
	m := periodic.Metrics{
		Events: func(s string) metrics.Counter {
			return events.With("event_type", s)
		},
	}

	cnt := make(chan struct{}, 128)
	fn := taskFunc(func(ctx context.Context) {
		cnt <- struct{}{}
	})
	const want = 5
	period := 20 * time.Millisecond
	r := periodic.StartWithMetrics(fn, &m, period, time.Hour)
	defer r.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := 0; v < want; v++ {
			select {
			case <-cnt:
			case <-time.After(5 * time.Second):
				t.Errorf("timed out waiting for run %d", v)
				return
			}
		}
	}()
	xtest.AssertReadReturnsBefore(t, done, 10*time.Second)

	r.Stop()
	assert.GreaterOrEqual(t,
		metrics.CounterValue(events.With("event_type", periodic.EventRun)),
		float64(want))
	assert.Equal(t, float64(1),
		metrics.CounterValue(events.With("event_type", periodic.EventStop)))
}

func TestTriggerRun(t *testing.T) {
	cnt := make(chan struct{}, 1)
	fn := taskFunc(func(ctx context.Context) {
		cnt <- struct{}{}
	})
	// Period far in the future: only TriggerRun can cause an execution.
	r := periodic.Start(fn, time.Hour, time.Hour)
	defer r.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-cnt
	}()
	for {
		r.TriggerRun()
		select {
		case <-done:
		case <-time.After(10 * time.Millisecond):
			continue
		}
		break
	}
}

func TestStopWaitsForRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})
	fn := taskFunc(func(ctx context.Context) {
		close(started)
		<-release
		close(finished)
	})
	r := periodic.Start(fn, 10*time.Millisecond, time.Hour)

	<-started
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		r.Stop()
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while the task was still running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	xtest.AssertReadReturnsBefore(t, stopped, time.Second)
	xtest.AssertReadReturnsBefore(t, finished, time.Second)
}

func TestKillCancelsRunContext(t *testing.T) {
	started := make(chan struct{})
	canceled := make(chan struct{})
	fn := taskFunc(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(canceled)
	})
	r := periodic.Start(fn, 10*time.Millisecond, time.Hour)

	<-started
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Kill()
	}()
	xtest.AssertReadReturnsBefore(t, canceled, time.Second)
	xtest.AssertReadReturnsBefore(t, done, time.Second)
}
