package mutate

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for shopadmin_mutations_total.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeGone       = "gone"
	OutcomeRejected   = "rejected"
)

type Metrics struct {
	mutations *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics registers the coordinator collectors on reg. Registering twice on the same
// registry reuses the collectors already there.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shopadmin_mutations_total",
			Help: "Optimistic mutations by resource, operation and outcome.",
		}, []string{"resource", "op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shopadmin_mutation_duration_seconds",
			Help:    "Time from optimistic apply to settlement.",
			Buckets: prometheus.DefBuckets,
		}, []string{"resource", "op"}),
	}
	if reg == nil {
		return m, nil
	}
	var err error
	if m.mutations, err = registerOrReuse(reg, m.mutations); err != nil {
		return nil, err
	}
	if m.duration, err = registerOrReuse(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) rejected(resource, op string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(resource, op, OutcomeRejected).Inc()
}

func (m *Metrics) settled(resource, op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(resource, op, outcome).Inc()
	m.duration.WithLabelValues(resource, op).Observe(d.Seconds())
}
