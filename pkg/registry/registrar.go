package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/getmockd/kongreg/pkg/gatewayclient"
	"github.com/getmockd/kongreg/pkg/logging"
)

// Registration outcomes reported to a RegistrationObserver.
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

// Registry registers a service definition on a gateway.
type Registry interface {
	Register(ctx context.Context, svc *ServiceInfo) error
}

// RegistrationObserver is notified once per Register call.
type RegistrationObserver interface {
	ObserveRegistration(shape, outcome string, elapsed time.Duration)
}

// Registrar is the entry point for self-registration. It validates the
// definition, runs the Reconciler and reports every failure as a
// *RegistrationError.
type Registrar struct {
	reconciler *Reconciler
	shape      Shape
	log        *slog.Logger
	observer   RegistrationObserver
}

var _ Registry = (*Registrar)(nil)

// Option configures a Registrar.
type Option func(*Registrar)

// WithLogger sets the logger for intent and outcome records.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registrar) {
		r.log = logging.OrNop(l)
	}
}

// WithObserver attaches a RegistrationObserver, typically a metrics recorder.
func WithObserver(o RegistrationObserver) Option {
	return func(r *Registrar) {
		r.observer = o
	}
}

// NewRegistrar returns a Registrar that reconciles through client using
// shape. A nil shape selects KongV0.
func NewRegistrar(client gatewayclient.Doer, shape Shape, opts ...Option) *Registrar {
	if shape == nil {
		shape = KongV0{}
	}
	r := &Registrar{
		shape: shape,
		log:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.reconciler = NewReconciler(client, shape, r.log)
	return r
}

// Shape returns the shape the registrar was built with.
func (r *Registrar) Shape() Shape {
	return r.shape
}

// Register makes the gateway's entry for svc match svc. It either succeeds
// completely or returns a *RegistrationError; steps applied before a
// failure are not rolled back.
func (r *Registrar) Register(ctx context.Context, svc *ServiceInfo) error {
	start := time.Now()
	shape := r.shape.Name()

	if err := svc.Validate(); err != nil {
		name := ""
		if svc != nil {
			name = svc.Name()
		}
		r.observe(OutcomeInvalid, start)
		r.log.Error("service definition rejected", "service", name, "shape", shape, "error", err)
		return &RegistrationError{Service: name, Shape: shape, Err: err}
	}

	log := r.log.With("service", svc.Name(), "shape", shape)
	log.Info("registering service", "upstream", svc.UpstreamURL(), "paths", svc.Paths(), "plugins", len(svc.plugins))
	log.Debug("service definition", "definition", svc.String())

	out, err := r.reconciler.Reconcile(ctx, svc)
	if err != nil {
		outcome := OutcomeFailed
		if IsValidation(err) {
			outcome = OutcomeInvalid
		}
		r.observe(outcome, start)
		log.Error("service registration failed", "error", err, "duration", time.Since(start))
		return &RegistrationError{Service: svc.Name(), Shape: shape, Err: err}
	}

	outcome := OutcomeUpdated
	if out.Created {
		outcome = OutcomeCreated
	}
	r.observe(outcome, start)
	log.Info("service registered",
		"outcome", outcome,
		"plugins_removed", out.PluginsRemoved,
		"plugins_installed", out.PluginsInstalled,
		"duration", time.Since(start))
	return nil
}

func (r *Registrar) observe(outcome string, start time.Time) {
	if r.observer != nil {
		r.observer.ObserveRegistration(r.shape.Name(), outcome, time.Since(start))
	}
}
