// Package metrics counts calendar syncs and writes them in the node
// exporter textfile format, since punch has no long-running process to scrape.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/balkashynov/punch/internal/apperr"
	"github.com/balkashynov/punch/internal/calendar"
)

// Sync holds the sync metrics of one process.
type Sync struct {
	registry *prometheus.Registry

	Runs        *prometheus.CounterVec
	Events      *prometheus.CounterVec
	LastSuccess prometheus.Gauge

	now func() time.Time
}

// NewSync creates the metrics on a private registry.
func NewSync() *Sync {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Sync{
		registry: reg,
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "punch",
				Subsystem: "calendar_sync",
				Name:      "runs_total",
				Help:      "Calendar reconciliations by outcome",
			},
			[]string{"outcome"},
		),
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "punch",
				Subsystem: "calendar_sync",
				Name:      "events_total",
				Help:      "Calendar event rows written by change type",
			},
			[]string{"change"},
		),
		LastSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "punch",
				Subsystem: "calendar_sync",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful reconciliation",
			},
		),
		now: time.Now,
	}
}

// ObserveSync implements calendar.Recorder.
func (m *Sync) ObserveSync(res calendar.Result, err error) {
	if err != nil {
		m.Runs.WithLabelValues(outcome(err)).Inc()
		return
	}
	m.Runs.WithLabelValues("ok").Inc()
	m.Events.WithLabelValues("created").Add(float64(res.Created))
	m.Events.WithLabelValues("updated").Add(float64(res.Updated))
	m.Events.WithLabelValues("deleted").Add(float64(res.Deleted))
	m.LastSuccess.Set(float64(m.now().Unix()))
}

// WriteTextfile writes all metrics to path atomically.
func (m *Sync) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Gatherer exposes the registry.
func (m *Sync) Gatherer() prometheus.Gatherer {
	return m.registry
}

func outcome(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindUpstream:
		return "upstream_error"
	case apperr.KindInvalidInput:
		return "config_error"
	default:
		return "error"
	}
}
