// Package metrics exposes Prometheus counters for sign-ins, contact
// aggregation, and exports.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics groups the collectors used across the service. A nil *Metrics is
// valid and records nothing, so components can be built without one in tests.
type Metrics struct {
	registry     *prometheus.Registry
	signIns      *prometheus.CounterVec
	pagesFetched prometheus.Counter
	aggregations *prometheus.CounterVec
	profiles     *prometheus.CounterVec
	exports      *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry, together
// with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_insight_sign_ins_total",
			Help: "Interactive Google sign-in attempts by outcome.",
		}, []string{"outcome"}),
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "contact_insight_contact_pages_fetched_total",
			Help: "Pages requested from the People API connections listing.",
		}),
		aggregations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_insight_contact_aggregations_total",
			Help: "Complete contact aggregations by outcome.",
		}, []string{"outcome"}),
		profiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_insight_profile_fetches_total",
			Help: "User-info fetches by outcome.",
		}, []string{"outcome"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contact_insight_exports_total",
			Help: "Spreadsheet exports by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.signIns, m.pagesFetched, m.aggregations, m.profiles, m.exports,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

func (m *Metrics) SignIn(err error) {
	if m == nil {
		return
	}
	m.signIns.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) PageFetched() {
	if m == nil {
		return
	}
	m.pagesFetched.Inc()
}

func (m *Metrics) Aggregation(err error) {
	if m == nil {
		return
	}
	m.aggregations.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) Profile(err error) {
	if m == nil {
		return
	}
	m.profiles.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) Export(err error) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(outcome(err)).Inc()
}
