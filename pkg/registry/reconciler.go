package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/getmockd/kongreg/pkg/gatewayclient"
	"github.com/getmockd/kongreg/pkg/logging"
)

// maxListPages bounds how many pages of a plugin list are followed.
const maxListPages = 1000

// Outcome summarizes a successful reconciliation.
type Outcome struct {
	// Created is true when the service did not exist before the call.
	Created bool
	// RouteCreated is true when a route was POSTed rather than patched.
	RouteCreated     bool
	PluginsRemoved   int
	PluginsInstalled int
}

// Reconciler brings one service on the gateway in line with a ServiceInfo.
// It keeps no state between calls and is safe for concurrent use on
// different service names. Calls for the same name are not coordinated.
type Reconciler struct {
	client gatewayclient.Doer
	shape  Shape
	log    *slog.Logger
}

// NewReconciler returns a Reconciler that talks to the gateway through
// client using the given shape.
func NewReconciler(client gatewayclient.Doer, shape Shape, log *slog.Logger) *Reconciler {
	return &Reconciler{
		client: client,
		shape:  shape,
		log:    logging.OrNop(log),
	}
}

// plan holds every payload of one reconciliation. Building it up front
// means a bad property value is reported before any request is sent.
type plan struct {
	service map[string]any
	route   map[string]any
	plugins []pluginPayload
}

func (r *Reconciler) plan(svc *ServiceInfo) (*plan, error) {
	p := &plan{}

	var err error
	if p.service, err = r.shape.ServicePayload(svc); err != nil {
		return nil, err
	}
	if r.shape.SupportsRoutes() {
		if p.route, err = r.shape.RoutePayload(svc); err != nil {
			return nil, err
		}
	}
	p.plugins = make([]pluginPayload, len(svc.plugins))
	for i, pl := range svc.plugins {
		p.plugins[i] = pl.payload()
	}
	return p, nil
}

// Reconcile runs the full sequence: existence check, create or update of
// the service (and its route), then plugin synchronization. It stops at
// the first failure and does not undo steps already applied.
func (r *Reconciler) Reconcile(ctx context.Context, svc *ServiceInfo) (Outcome, error) {
	var out Outcome

	if err := svc.Validate(); err != nil {
		return out, err
	}
	p, err := r.plan(svc)
	if err != nil {
		return out, err
	}

	name := svc.Name()
	exists, err := r.exists(ctx, name)
	if err != nil {
		return out, err
	}

	if exists {
		if err := r.updateService(ctx, name, p.service); err != nil {
			return out, err
		}
		if r.shape.SupportsRoutes() {
			if out.RouteCreated, err = r.syncRoute(ctx, name, p.route); err != nil {
				return out, err
			}
		}
	} else {
		out.Created = true
		if err := r.createService(ctx, p.service); err != nil {
			return out, err
		}
		if r.shape.SupportsRoutes() {
			if err := r.createRoute(ctx, name, p.route); err != nil {
				return out, err
			}
			out.RouteCreated = true
		}
	}

	// A service created by this call has no plugins to clear.
	if !out.Created {
		if out.PluginsRemoved, err = r.clearPlugins(ctx, name); err != nil {
			return out, err
		}
	}
	if out.PluginsInstalled, err = r.installPlugins(ctx, name, p.plugins); err != nil {
		return out, err
	}
	return out, nil
}

// exists reports whether the gateway already has the service: 200 means
// yes, 404 means no, anything else is an error.
func (r *Reconciler) exists(ctx context.Context, name string) (bool, error) {
	path := r.shape.ServicePath(name)
	resp, err := r.send(ctx, "check service", http.MethodGet, path, nil, func(status int) bool {
		return status == http.StatusOK || status == http.StatusNotFound
	})
	if err != nil {
		return false, err
	}
	exists := resp.StatusCode == http.StatusOK
	r.log.Debug("service existence checked", "service", name, "exists", exists)
	return exists, nil
}

func (r *Reconciler) createService(ctx context.Context, payload map[string]any) error {
	_, err := r.send(ctx, "create service", http.MethodPost, r.shape.ServicesPath(), payload, r.shape.Created)
	return err
}

func (r *Reconciler) updateService(ctx context.Context, name string, payload map[string]any) error {
	_, err := r.send(ctx, "update service", http.MethodPatch, r.shape.ServicePath(name), payload, r.shape.Succeeded)
	return err
}

func (r *Reconciler) createRoute(ctx context.Context, name string, payload map[string]any) error {
	_, err := r.send(ctx, "create route", http.MethodPost, r.shape.RoutesPath(name), payload, r.shape.Created)
	return err
}

// syncRoute patches the first route the gateway lists for the service, or
// creates one when there is none. Additional routes are left untouched.
func (r *Reconciler) syncRoute(ctx context.Context, name string, payload map[string]any) (created bool, err error) {
	const op = "list routes"
	path := r.shape.RoutesPath(name)
	resp, err := r.send(ctx, op, http.MethodGet, path, nil, r.shape.Succeeded)
	if err != nil {
		return false, err
	}
	var routes listPage
	if err := resp.Decode(&routes); err != nil {
		return false, &GatewayError{Op: op, Method: http.MethodGet, Path: path, Err: err}
	}

	if len(routes.Data) == 0 {
		return true, r.createRoute(ctx, name, payload)
	}

	first := routes.Data[0]
	if first.ID == "" {
		return false, &GatewayError{Op: op, Method: http.MethodGet, Path: path, Err: fmt.Errorf("route without id")}
	}
	if len(routes.Data) > 1 {
		r.log.Debug("service has more than one route, only the first is updated",
			"service", name, "routes", len(routes.Data), "route", first.ID)
	}
	_, err = r.send(ctx, "update route", http.MethodPatch, r.shape.RoutePath(name, first.ID), payload, r.shape.Succeeded)
	return false, err
}

// clearPlugins deletes every plugin attached to the service. The first
// failing delete aborts the rest.
func (r *Reconciler) clearPlugins(ctx context.Context, name string) (int, error) {
	plugins, err := r.listPlugins(ctx, name)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, p := range plugins {
		path := r.shape.PluginPath(name, p.ID)
		if p.ID == "" {
			return removed, &GatewayError{Op: "delete plugin", Method: http.MethodDelete, Path: path,
				Err: fmt.Errorf("plugin %q without id", p.Name)}
		}
		_, err := r.send(ctx, "delete plugin", http.MethodDelete, path, nil, func(status int) bool {
			return r.shape.Succeeded(status) || status == http.StatusNoContent
		})
		if err != nil {
			return removed, err
		}
		removed++
		r.log.Debug("plugin removed", "service", name, "plugin", p.Name, "id", p.ID)
	}
	return removed, nil
}

// installPlugins POSTs each plugin in order. Plugins installed before a
// failure stay installed.
func (r *Reconciler) installPlugins(ctx context.Context, name string, plugins []pluginPayload) (int, error) {
	installed := 0
	for _, p := range plugins {
		_, err := r.send(ctx, "install plugin "+p.Name, http.MethodPost, r.shape.PluginsPath(name), p, func(status int) bool {
			return r.shape.Succeeded(status) || r.shape.Created(status)
		})
		if err != nil {
			return installed, err
		}
		installed++
		r.log.Debug("plugin installed", "service", name, "plugin", p.Name)
	}
	return installed, nil
}

// listPlugins reads every page of the service's plugin list.
func (r *Reconciler) listPlugins(ctx context.Context, name string) ([]listEntry, error) {
	const op = "list plugins"
	var all []listEntry
	seen := make(map[string]bool)

	path := r.shape.PluginsPath(name)
	for page := 0; path != "" && page < maxListPages; page++ {
		if seen[path] {
			break
		}
		seen[path] = true

		resp, err := r.send(ctx, op, http.MethodGet, path, nil, r.shape.Succeeded)
		if err != nil {
			return nil, err
		}
		var lp listPage
		if err := resp.Decode(&lp); err != nil {
			return nil, &GatewayError{Op: op, Method: http.MethodGet, Path: path, Err: err}
		}
		all = append(all, lp.Data...)

		next, err := nextPath(lp.Next)
		if err != nil {
			return nil, &GatewayError{Op: op, Method: http.MethodGet, Path: path, Err: err}
		}
		path = next
	}
	return all, nil
}

// send performs one request and turns transport failures and unexpected
// statuses into a *GatewayError.
func (r *Reconciler) send(ctx context.Context, op, method, path string, body any, ok func(int) bool) (*gatewayclient.Response, error) {
	resp, err := r.client.Do(ctx, method, path, body)
	if err != nil {
		return nil, &GatewayError{Op: op, Method: method, Path: path, Err: err}
	}
	if !ok(resp.StatusCode) {
		return nil, &GatewayError{
			Op:         op,
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       resp.String(),
		}
	}
	return resp, nil
}

// listPage is Kong's paginated list envelope.
type listPage struct {
	Data []listEntry `json:"data"`
	Next *string     `json:"next"`
}

type listEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// nextPath turns a "next" link into a request path. Kong 0.x returns an
// absolute URL, later versions a path.
func nextPath(next *string) (string, error) {
	if next == nil || *next == "" {
		return "", nil
	}
	u, err := url.Parse(*next)
	if err != nil {
		return "", fmt.Errorf("invalid next link %q: %w", *next, err)
	}
	if u.IsAbs() || u.Host != "" {
		return u.RequestURI(), nil
	}
	return *next, nil
}
