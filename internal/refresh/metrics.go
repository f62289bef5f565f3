package refresh

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess        string = "success"
	outcomeFailure        string = "failure"
	outcomeTimeout        string = "timeout"
	outcomeNoRefreshToken string = "no_refresh_token"
)

// Metrics are shared by all the coordinators of a process, each coordinator reports under its own backend label.
type Metrics struct {
	refreshes *prometheus.CounterVec
	waiters   *prometheus.HistogramVec
	duration  *prometheus.HistogramVec
}

func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backoffice",
			Name:      "token_refresh_total",
			Help:      "Number of token refresh cycles by outcome.",
		}, []string{"backend", "outcome"}),
		waiters: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "backoffice",
			Name:      "token_refresh_waiters",
			Help:      "Number of requests that waited on one token refresh cycle.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}, []string{"backend"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "backoffice",
			Name:      "token_refresh_duration_seconds",
			Help:      "Duration of token refresh cycles.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"}),
	}
	if registerer == nil {
		return m, nil
	}
	for _, collector := range []prometheus.Collector{m.refreshes, m.waiters, m.duration} {
		err := registerer.Register(collector)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeCycle(backend, outcome string, waiters int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(backend, outcome).Inc()
	m.waiters.WithLabelValues(backend).Observe(float64(waiters))
	m.duration.WithLabelValues(backend).Observe(elapsed.Seconds())
}

func (m *Metrics) observeMissingToken(backend string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(backend, outcomeNoRefreshToken).Inc()
}
