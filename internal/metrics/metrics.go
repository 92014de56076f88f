// Package metrics exposes Prometheus counters for the storefront engines.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "terravik"

// Outcome labels shared by the counters below.
const (
	OutcomeOK         = "ok"
	OutcomeIncomplete = "incomplete"
	OutcomeInvalid    = "invalid"
	OutcomeNotFound   = "not_found"
	OutcomeError      = "error"
	OutcomeCacheHit   = "cache_hit"
	OutcomeRejected   = "rejected"
)

// Registry owns its own prometheus registry so tests and multiple servers in
// one process never collide on the default one. A nil *Registry is a no-op.
type Registry struct {
	registry *prometheus.Registry

	plans          *prometheus.CounterVec
	cepLookups     *prometheus.CounterVec
	shippingQuotes *prometheus.CounterVec
	coupons        *prometheus.CounterVec
	bumpEvents     *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_generated_total",
			Help:      "Calculator plan requests by outcome.",
		}, []string{"outcome"}),
		cepLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cep_lookups_total",
			Help:      "Postal code lookups by outcome.",
		}, []string{"outcome"}),
		shippingQuotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipping_quotes_total",
			Help:      "Shipping quotes by region and free shipping eligibility.",
		}, []string{"region", "free"}),
		coupons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_applications_total",
			Help:      "Coupon applications by outcome.",
		}, []string{"outcome"}),
		bumpEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_bump_events_total",
			Help:      "Order bump offers shown, accepted and rejected.",
		}, []string{"action"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"code", "method"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code", "method"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.plans,
		r.cepLookups,
		r.shippingQuotes,
		r.coupons,
		r.bumpEvents,
		r.httpRequests,
		r.httpDuration,
	)
	return r
}

func (r *Registry) PlanGenerated(outcome string) {
	if r == nil {
		return
	}
	r.plans.WithLabelValues(outcome).Inc()
}

func (r *Registry) CEPLookup(outcome string) {
	if r == nil {
		return
	}
	r.cepLookups.WithLabelValues(outcome).Inc()
}

func (r *Registry) ShippingQuoted(region string, free bool) {
	if r == nil {
		return
	}
	label := "false"
	if free {
		label = "true"
	}
	r.shippingQuotes.WithLabelValues(region, label).Inc()
}

func (r *Registry) CouponApplied(outcome string) {
	if r == nil {
		return
	}
	r.coupons.WithLabelValues(outcome).Inc()
}

func (r *Registry) BumpEvent(action string) {
	if r == nil {
		return
	}
	r.bumpEvents.WithLabelValues(action).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Instrument wraps an HTTP handler with request counters and latency.
func (r *Registry) Instrument(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return promhttp.InstrumentHandlerDuration(r.httpDuration,
		promhttp.InstrumentHandlerCounter(r.httpRequests, next))
}

// CEPCounter returns the lookup counter for one outcome.
func (r *Registry) CEPCounter(outcome string) prometheus.Counter {
	return r.cepLookups.WithLabelValues(outcome)
}

// BumpCounter returns the event counter for one order bump action.
func (r *Registry) BumpCounter(action string) prometheus.Counter {
	return r.bumpEvents.WithLabelValues(action)
}

// PlanCounter returns the plan counter for one outcome.
func (r *Registry) PlanCounter(outcome string) prometheus.Counter {
	return r.plans.WithLabelValues(outcome)
}
