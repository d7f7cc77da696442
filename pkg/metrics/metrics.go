package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/getmockd/kongreg/pkg/gatewayclient"
	"github.com/getmockd/kongreg/pkg/registry"
)

const namespace = "kongreg"

// StatusError is the status label used when a request got no response.
const StatusError = "error"

var (
	registrationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
	requestBuckets      = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10}
)

// Recorder records registration and admin API metrics.
type Recorder struct {
	gatherer prometheus.Gatherer

	registrations        *prometheus.CounterVec
	registrationDuration *prometheus.HistogramVec
	lastSuccess          *prometheus.GaugeVec
	requests             *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
}

var (
	_ registry.RegistrationObserver = (*Recorder)(nil)
	_ gatewayclient.RequestObserver = (*Recorder)(nil)
)

// New creates a Recorder and registers its collectors with reg. A nil reg
// gets a fresh registry that also carries the Go runtime and process
// collectors.
//
// New panics if a collector is already registered with reg.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	r := &Recorder{
		gatherer: reg,

		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Total number of service registrations by outcome",
		}, []string{"shape", "outcome"}),

		registrationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registration_duration_seconds",
			Help:      "Duration of service registrations in seconds",
			Buckets:   registrationBuckets,
		}, []string{"shape"}),

		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful registration",
		}, []string{"shape"}),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_requests_total",
			Help:      "Total number of gateway admin API requests",
		}, []string{"method", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "admin_request_duration_seconds",
			Help:      "Duration of gateway admin API requests in seconds",
			Buckets:   requestBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		r.registrations,
		r.registrationDuration,
		r.lastSuccess,
		r.requests,
		r.requestDuration,
	)
	return r
}

// ObserveRegistration implements registry.RegistrationObserver.
func (r *Recorder) ObserveRegistration(shape, outcome string, elapsed time.Duration) {
	r.registrations.WithLabelValues(shape, outcome).Inc()
	r.registrationDuration.WithLabelValues(shape).Observe(elapsed.Seconds())
	if outcome == registry.OutcomeCreated || outcome == registry.OutcomeUpdated {
		r.lastSuccess.WithLabelValues(shape).SetToCurrentTime()
	}
}

// ObserveRequest implements gatewayclient.RequestObserver.
func (r *Recorder) ObserveRequest(method string, status int, elapsed time.Duration) {
	label := StatusError
	if status > 0 {
		label = strconv.Itoa(status)
	}
	r.requests.WithLabelValues(method, label).Inc()
	r.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Gatherer returns the registry the Recorder's collectors live in.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.gatherer
}

// Handler returns an HTTP handler serving the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
