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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NewPromCounter wraps a prometheus counter vector as a Counter. Returns nil
// if cv is nil.
func NewPromCounter(cv *prometheus.CounterVec) Counter {
	if cv == nil {
		return nil
	}
	return &promCounter{cv: cv}
}

// NewPromCounterFrom creates a registered prometheus counter vector and wraps
// it as a Counter.
func NewPromCounterFrom(opts prometheus.CounterOpts, labelNames []string) Counter {
	return NewPromCounter(promauto.NewCounterVec(opts, labelNames))
}

// NewPromGauge wraps a prometheus gauge vector as a Gauge. Returns nil if gv
// is nil.
func NewPromGauge(gv *prometheus.GaugeVec) Gauge {
	if gv == nil {
		return nil
	}
	return &promGauge{gv: gv}
}

// NewPromGaugeFrom creates a registered prometheus gauge vector and wraps it
// as a Gauge.
func NewPromGaugeFrom(opts prometheus.GaugeOpts, labelNames []string) Gauge {
	return NewPromGauge(promauto.NewGaugeVec(opts, labelNames))
}

// labelValuesSlice accumulates alternating label name/value pairs across
// With calls.
type labelValuesSlice []string

func (lvs labelValuesSlice) with(labelValues ...string) labelValuesSlice {
	if len(labelValues)%2 != 0 {
		labelValues = append(labelValues, "unknown")
	}
	result := make(labelValuesSlice, len(lvs), len(lvs)+len(labelValues))
	copy(result, lvs)
	return append(result, labelValues...)
}

func makeLabels(labelValues ...string) prometheus.Labels {
	labels := prometheus.Labels{}
	for i := 0; i+1 < len(labelValues); i += 2 {
		labels[labelValues[i]] = labelValues[i+1]
	}
	return labels
}

type promCounter struct {
	cv  *prometheus.CounterVec
	lvs labelValuesSlice
}

func (c *promCounter) With(labelValues ...string) Counter {
	return &promCounter{cv: c.cv, lvs: c.lvs.with(labelValues...)}
}

func (c *promCounter) Add(delta float64) {
	c.cv.With(makeLabels(c.lvs...)).Add(delta)
}

type promGauge struct {
	gv  *prometheus.GaugeVec
	lvs labelValuesSlice
}

func (g *promGauge) With(labelValues ...string) Gauge {
	return &promGauge{gv: g.gv, lvs: g.lvs.with(labelValues...)}
}

func (g *promGauge) Add(delta float64) {
	g.gv.With(makeLabels(g.lvs...)).Add(delta)
}

func (g *promGauge) Set(value float64) {
	g.gv.With(makeLabels(g.lvs...)).Set(value)
}
