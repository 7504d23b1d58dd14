package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache lookup outcomes recorded by ObserveCacheLookup.
const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheUnknown = "unknown"
)

// Metrics collects Prometheus metrics for the permission core.
type Metrics struct {
	registry       *prometheus.Registry
	handler        http.Handler
	decisionsTotal *prometheus.CounterVec
	cacheTotal     *prometheus.CounterVec
	grantsTotal    *prometheus.CounterVec
	redeemTotal    *prometheus.CounterVec
}

// NewMetrics initialises the registry and the core counters.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commng_authz_decisions_total",
		Help: "Authorization decisions by outcome.",
	}, []string{"outcome"})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commng_permission_cache_lookups_total",
		Help: "Permission cache lookups by result.",
	}, []string{"result"})
	grants := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commng_role_grants_total",
		Help: "Role grants by outcome.",
	}, []string{"outcome"})
	redeems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commng_invite_redemptions_total",
		Help: "Invite code redemptions by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(decisions, cache, grants, redeems)
	return &Metrics{
		registry:       registry,
		handler:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		decisionsTotal: decisions,
		cacheTotal:     cache,
		grantsTotal:    grants,
		redeemTotal:    redeems,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveDecision records an authorization decision.
func (m *Metrics) ObserveDecision(allowed bool) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(outcome(allowed)).Inc()
}

// ObserveCacheLookup records a permission cache lookup result.
func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}

// ObserveGrant records a grant attempt.
func (m *Metrics) ObserveGrant(succeeded bool) {
	if m == nil {
		return
	}
	m.grantsTotal.WithLabelValues(status(succeeded)).Inc()
}

// ObserveRedemption records an invite redemption attempt.
func (m *Metrics) ObserveRedemption(succeeded bool) {
	if m == nil {
		return
	}
	m.redeemTotal.WithLabelValues(status(succeeded)).Inc()
}

// Registerer exposes the registry for module specific metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

func outcome(ok bool) string {
	if ok {
		return "allow"
	}
	return "deny"
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
