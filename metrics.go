package ioc

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultMetricsNamespace = "ioc"

// Resolution outcomes used as the "outcome" label.
const (
	outcomeSuccess      = "success"
	outcomeUnregistered = "unregistered"
	outcomeCircular     = "circular"
	outcomeConstruction = "construction"
	outcomeTemplate     = "template"
	outcomeOther        = "other"
)

// metrics holds the container's Prometheus collectors.
// A nil *metrics is valid and records nothing.
type metrics struct {
	resolutions   *prometheus.CounterVec
	duration      prometheus.Histogram
	registrations prometheus.Gauge
}

func newMetrics(namespace string, reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Top-level resolve calls by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolution_duration_seconds",
			Help:      "Time spent building an object graph for a top-level resolve call.",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 10),
		}),
		registrations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registrations",
			Help:      "Number of abstraction registrations held by the container.",
		}),
	}

	for _, collector := range []prometheus.Collector{m.resolutions, m.duration, m.registrations} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return m, nil
}

func (m *metrics) observeResolve(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcomeOf(err)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *metrics) setRegistrations(n int) {
	if m == nil {
		return
	}
	m.registrations.Set(float64(n))
}

// outcomeOf maps a resolve error to its metric label.
func outcomeOf(err error) string {
	var (
		unregistered *UnregisteredAbstractionError
		circular     *CircularDependencyError
		construction *ConstructionError
		ambiguous    *AmbiguousTemplateArgumentError
	)
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.As(err, &construction):
		return outcomeConstruction
	case errors.As(err, &circular):
		return outcomeCircular
	case errors.As(err, &unregistered):
		return outcomeUnregistered
	case errors.As(err, &ambiguous), errors.Is(err, ErrUnboundTemplate):
		return outcomeTemplate
	default:
		return outcomeOther
	}
}
