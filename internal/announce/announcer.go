package announce

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/getmockd/kongreg/pkg/logging"
	"github.com/getmockd/kongreg/pkg/registry"
)

// DefaultInterval is the default time between registrations.
const DefaultInterval = 30 * time.Second

// Status summarizes the attempts made so far.
type Status struct {
	Attempts    int
	Failures    int
	LastAttempt time.Time
	LastSuccess time.Time
	LastError   error
}

// Announcer periodically registers one service.
type Announcer struct {
	registry registry.Registry
	service  *registry.ServiceInfo
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	status Status
}

// Option configures an Announcer.
type Option func(*Announcer)

// WithInterval sets the time between registrations. Values <= 0 keep the
// default.
func WithInterval(d time.Duration) Option {
	return func(a *Announcer) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Announcer) {
		a.log = logging.OrNop(l)
	}
}

// New creates an Announcer for svc.
func New(reg registry.Registry, svc *registry.ServiceInfo, opts ...Option) *Announcer {
	a := &Announcer{
		registry: reg,
		service:  svc,
		interval: DefaultInterval,
		log:      logging.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Interval returns the time between registrations.
func (a *Announcer) Interval() time.Duration {
	return a.interval
}

// Announce makes one registration attempt and records its result.
func (a *Announcer) Announce(ctx context.Context) error {
	err := a.registry.Register(ctx, a.service)

	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.status.Attempts++
	a.status.LastAttempt = now
	a.status.LastError = err
	if err != nil {
		a.status.Failures++
	} else {
		a.status.LastSuccess = now
	}
	return err
}

// Run registers immediately and then on every tick until ctx is done.
// Failures never stop the loop. It returns ctx.Err().
func (a *Announcer) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	if err := a.Announce(ctx); err != nil && ctx.Err() == nil {
		a.log.Warn("initial registration failed, will retry", "service", a.service.Name(),
			"retry_in", a.interval, "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.Announce(ctx); err != nil && ctx.Err() == nil {
				a.log.Warn("registration failed, will retry", "service", a.service.Name(),
					"retry_in", a.interval, "error", err)
			}
		}
	}
}

// Status returns a snapshot of the attempts made so far.
func (a *Announcer) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}
