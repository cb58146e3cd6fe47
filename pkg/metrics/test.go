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

package metrics

import (
	"fmt"
	"strings"
	"sync"
)

// testValues holds observed values shared by all label-derived children of a
// test metric.
type testValues struct {
	mu     sync.Mutex
	values map[string]float64
}

func (v *testValues) add(key string, delta float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values[key] += delta
}

func (v *testValues) set(key string, value float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values[key] = value
}

func (v *testValues) get(key string) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.values[key]
}

func labelKey(lvs []string) string {
	return strings.Join(lvs, "\x00")
}

// TestCounter is an in-memory counter for tests. Use CounterValue to inspect
// the observed value for a label combination.
type TestCounter struct {
	shared *testValues
	lvs    []string
}

// NewTestCounter creates a counter for tests.
func NewTestCounter() *TestCounter {
	return &TestCounter{shared: &testValues{values: map[string]float64{}}}
}

func (c *TestCounter) With(labelValues ...string) Counter {
	return &TestCounter{
		shared: c.shared,
		lvs:    append(c.lvs[:len(c.lvs):len(c.lvs)], labelValues...),
	}
}

func (c *TestCounter) Add(delta float64) {
	c.shared.add(labelKey(c.lvs), delta)
}

// TestGauge is an in-memory gauge for tests. Use GaugeValue to inspect the
// observed value for a label combination.
type TestGauge struct {
	shared *testValues
	lvs    []string
}

// NewTestGauge creates a gauge for tests.
func NewTestGauge() *TestGauge {
	return &TestGauge{shared: &testValues{values: map[string]float64{}}}
}

func (g *TestGauge) With(labelValues ...string) Gauge {
	return &TestGauge{
		shared: g.shared,
		lvs:    append(g.lvs[:len(g.lvs):len(g.lvs)], labelValues...),
	}
}

func (g *TestGauge) Add(delta float64) {
	g.shared.add(labelKey(g.lvs), delta)
}

func (g *TestGauge) Set(value float64) {
	g.shared.set(labelKey(g.lvs), value)
}

// CounterValue extracts the value from a test counter at its current label
// combination. Panics if c was not created by NewTestCounter.
func CounterValue(c Counter) float64 {
	tc, ok := c.(*TestCounter)
	if !ok {
		panic(fmt.Sprintf("counter %T is not a test counter", c))
	}
	return tc.shared.get(labelKey(tc.lvs))
}

// GaugeValue extracts the value from a test gauge at its current label
// combination. Panics if g was not created by NewTestGauge.
func GaugeValue(g Gauge) float64 {
	tg, ok := g.(*TestGauge)
	if !ok {
		panic(fmt.Sprintf("gauge %T is not a test gauge", g))
	}
	return tg.shared.get(labelKey(tg.lvs))
}
