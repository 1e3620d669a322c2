package scheduler

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultSuccess   = "success"
	resultFailure   = "failure"
	resultCancelled = "cancelled"

	kindSystem  = "system"
	kindDynamic = "dynamic"
)

type metrics struct {
	jobs     *prometheus.GaugeVec
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// newMetrics builds the engine collectors and registers them on reg. A nil
// reg keeps them unregistered but usable.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		jobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cronhost",
			Subsystem: "scheduler",
			Name:      "jobs",
			Help:      "Registered jobs by kind.",
		}, []string{"kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cronhost",
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Job executions by result.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cronhost",
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Job execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 10),
		}, []string{"job"}),
	}
	if reg == nil {
		return m
	}
	m.jobs = register(reg, m.jobs)
	m.runs = register(reg, m.runs)
	m.duration = register(reg, m.duration)
	return m
}

// register reuses an identical collector that is already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func kindLabel(system bool) string {
	if system {
		return kindSystem
	}
	return kindDynamic
}

func (m *metrics) jobAdded(system bool)   { m.jobs.WithLabelValues(kindLabel(system)).Inc() }
func (m *metrics) jobRemoved(system bool) { m.jobs.WithLabelValues(kindLabel(system)).Dec() }

func (m *metrics) observeRun(job, result string, took time.Duration) {
	m.runs.WithLabelValues(job, result).Inc()
	m.duration.WithLabelValues(job).Observe(took.Seconds())
}
