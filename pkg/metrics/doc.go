// Package metrics exposes kongreg's Prometheus metrics.
//
// A Recorder observes two things: every admin API request sent by the
// gateway client, and the outcome of every registration. Both are wired
// through small observer interfaces so the registry and gatewayclient
// packages do not import Prometheus.
//
// # Metrics
//
//   - kongreg_registrations_total: counter (labels: shape, outcome)
//   - kongreg_registration_duration_seconds: histogram (labels: shape)
//   - kongreg_last_success_timestamp_seconds: gauge (labels: shape)
//   - kongreg_admin_requests_total: counter (labels: method, status)
//   - kongreg_admin_request_duration_seconds: histogram (labels: method)
//
// status is the numeric HTTP status, or "error" when no response arrived.
//
// # Usage
//
//	rec := metrics.New(nil)
//	client := gatewayclient.New(url, gatewayclient.WithObserver(rec))
//	reg := registry.NewRegistrar(client, shape, registry.WithObserver(rec))
//	http.Handle("/metrics", rec.Handler())
package metrics
