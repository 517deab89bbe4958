package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"campus-gateway/internal/middleware"
)

// DispatchMetrics counts dispatch outcomes per rule. A nil value records nothing.
type DispatchMetrics struct {
	Outcomes *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func NewDispatchMetrics(reg prometheus.Registerer) (*DispatchMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	outcomes, err := middleware.RegisterCollector(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus",
		Subsystem: "gateway",
		Name:      "dispatch_total",
		Help:      "Dispatched requests partitioned by rule, terminal state, and failure kind.",
	}, []string{"rule", "state", "failure"}))
	if err != nil {
		return nil, err
	}

	duration, err := middleware.RegisterCollector(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "campus",
		Subsystem: "gateway",
		Name:      "dispatch_duration_seconds",
		Help:      "Time from route resolution to the terminal state, partitioned by rule.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"rule"}))
	if err != nil {
		return nil, err
	}

	return &DispatchMetrics{Outcomes: outcomes, Duration: duration}, nil
}

func (m *DispatchMetrics) observe(o Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}

	rule := o.Rule
	if rule == "" {
		rule = "unmatched"
	}
	m.Outcomes.WithLabelValues(rule, o.State.String(), o.Failure).Inc()
	m.Duration.WithLabelValues(rule).Observe(elapsed.Seconds())
}
