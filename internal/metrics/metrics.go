// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics turns harvest events into Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/agentberlin/feedsnake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "feedsnake"

// Outcomes used as label values.
const (
	OutcomeCompleted = "completed"
	OutcomeStopped   = "stopped"
	OutcomeFailed    = "failed"
	OutcomeIngested  = "ingested"
	OutcomeSkipped   = "skipped"
)

// Emitter is a feedsnake.EventEmitter that records every event it sees.
type Emitter struct {
	registry *prometheus.Registry

	harvests        *prometheus.CounterVec
	harvestsRunning prometheus.Gauge
	harvestDuration *prometheus.HistogramVec
	items           *prometheus.CounterVec
	ticks           prometheus.Counter
	discovered      prometheus.Counter
	waitProgress    *prometheus.GaugeVec
	lastSuccess     prometheus.Gauge
}

var _ feedsnake.EventEmitter = (*Emitter)(nil)

// NewEmitter registers the metrics on a fresh registry, so several
// emitters can coexist in one process.
func NewEmitter() *Emitter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Emitter{
		registry: reg,
		harvests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "harvests_total",
			Help:      "Profile harvests by outcome and collection policy.",
		}, []string{"outcome", "policy"}),
		harvestsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "harvests_running",
			Help:      "Profile harvests currently in progress.",
		}),
		harvestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "harvest_duration_seconds",
			Help:      "Duration of finished profile harvests.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"policy"}),
		items: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Items by outcome and kind (full or quick).",
		}, []string{"outcome", "kind"}),
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "ticks_total",
			Help:      "Scroll ticks performed on feeds.",
		}),
		discovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "links_discovered_total",
			Help:      "Item links seen for the first time in a harvest.",
		}),
		waitProgress: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wait_progress_ratio",
			Help:      "Progress of the latest wait of each phase, from 0 to 1.",
		}, []string{"phase"}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the latest completed profile harvest.",
		}),
	}
}

// Registry returns the registry holding the metrics.
func (e *Emitter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (e *Emitter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

func (e *Emitter) Emit(eventType feedsnake.EventType, data interface{}) {
	switch ev := data.(type) {
	case feedsnake.HarvestEvent:
		e.harvest(eventType, ev)
	case feedsnake.ItemEvent:
		e.item(eventType, ev)
	case feedsnake.TickEvent:
		e.ticks.Inc()
		e.discovered.Add(float64(ev.Discovered))
	case feedsnake.WaitEvent:
		if ev.Total > 0 {
			e.waitProgress.WithLabelValues(string(ev.Phase)).Set(ev.Elapsed.Seconds() / ev.Total.Seconds())
		}
	}
}

func (e *Emitter) harvest(eventType feedsnake.EventType, ev feedsnake.HarvestEvent) {
	policy := ev.Profile.Policy.String()
	var outcome string
	switch eventType {
	case feedsnake.EventHarvestStarted:
		e.harvestsRunning.Inc()
		return
	case feedsnake.EventHarvestCompleted:
		outcome = OutcomeCompleted
		e.lastSuccess.SetToCurrentTime()
	case feedsnake.EventHarvestStopped:
		outcome = OutcomeStopped
	case feedsnake.EventHarvestFailed:
		outcome = OutcomeFailed
	default:
		return
	}
	e.harvestsRunning.Dec()
	e.harvests.WithLabelValues(outcome, policy).Inc()
	e.harvestDuration.WithLabelValues(policy).Observe(ev.Result.Duration.Seconds())
}

func (e *Emitter) item(eventType feedsnake.EventType, ev feedsnake.ItemEvent) {
	kind := "quick"
	if ev.Complete {
		kind = "full"
	}
	switch eventType {
	case feedsnake.EventItemIngested:
		e.items.WithLabelValues(OutcomeIngested, kind).Inc()
	case feedsnake.EventItemSkipped:
		e.items.WithLabelValues(OutcomeSkipped, kind).Inc()
	case feedsnake.EventItemFailed:
		e.items.WithLabelValues(OutcomeFailed, kind).Inc()
	}
}
