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

// Package metrics defines minimal counter and gauge interfaces that decouple
// instrumented code from the metrics backend. Production code backs them with
// prometheus vectors, tests use the in-memory implementations. All helper
// functions treat nil metrics as "instrumentation disabled" and do nothing,
// so instrumented code never needs nil checks.
package metrics

// Counter describes a monotonically increasing metric.
type Counter interface {
	// With returns a counter with the given label values attached. The
	// returned counter observes independently from the receiver.
	With(labelValues ...string) Counter
	Add(delta float64)
}

// Gauge describes a metric that can go up and down.
type Gauge interface {
	// With returns a gauge with the given label values attached.
	With(labelValues ...string) Gauge
	Add(delta float64)
	Set(value float64)
}

// CounterAdd increases the passed counter by the given amount, if the counter
// is non-nil.
func CounterAdd(c Counter, delta float64) {
	if c != nil {
		c.Add(delta)
	}
}

// CounterInc increases the passed counter by one, if the counter is non-nil.
func CounterInc(c Counter) {
	CounterAdd(c, 1)
}

// CounterWith returns the counter with the label values attached, or nil if
// the counter is nil.
func CounterWith(c Counter, labelValues ...string) Counter {
	if c == nil {
		return nil
	}
	return c.With(labelValues...)
}

// GaugeAdd increases the passed gauge by the given amount, if the gauge is
// non-nil.
func GaugeAdd(g Gauge, delta float64) {
	if g != nil {
		g.Add(delta)
	}
}

// GaugeSet sets the passed gauge to the given value, if the gauge is non-nil.
func GaugeSet(g Gauge, value float64) {
	if g != nil {
		g.Set(value)
	}
}

// GaugeWith returns the gauge with the label values attached, or nil if the
// gauge is nil.
func GaugeWith(g Gauge, labelValues ...string) Gauge {
	if g == nil {
		return nil
	}
	return g.With(labelValues...)
}
