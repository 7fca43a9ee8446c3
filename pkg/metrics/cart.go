package metrics

import "github.com/prometheus/client_golang/prometheus"

// CartMetrics records cart store and session activity.
type CartMetrics struct {
	mutations       *prometheus.CounterVec
	loads           *prometheus.CounterVec
	persistFailures prometheus.Counter
	sessions        prometheus.Gauge
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations applied, by operation.",
	}, []string{"op"})
	loads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_loads_total",
		Help: "Identity-driven cart loads, by outcome.",
	}, []string{"outcome"})
	persistFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_persist_failures_total",
		Help: "Cart snapshot writes that failed and were dropped.",
	})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cart_sessions_active",
		Help: "Cart sessions currently held in memory.",
	})
	reg.MustRegister(mutations, loads, persistFailures, sessions)
	return &CartMetrics{
		mutations:       mutations,
		loads:           loads,
		persistFailures: persistFailures,
		sessions:        sessions,
	}
}

func (c *CartMetrics) IncMutation(op string) {
	if c == nil || c.mutations == nil {
		return
	}
	c.mutations.WithLabelValues(normalizeLabel(op)).Inc()
}

func (c *CartMetrics) IncLoad(outcome string) {
	if c == nil || c.loads == nil {
		return
	}
	c.loads.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (c *CartMetrics) IncPersistFailure() {
	if c == nil || c.persistFailures == nil {
		return
	}
	c.persistFailures.Inc()
}

// SetActiveSessions reports the number of live cart sessions.
func (c *CartMetrics) SetActiveSessions(n int) {
	if c == nil || c.sessions == nil {
		return
	}
	c.sessions.Set(float64(n))
}
