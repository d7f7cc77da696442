package registry

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Shape names accepted by ShapeByName.
const (
	ShapeKongV0 = "kong-v0"
	ShapeKongV2 = "kong-v2"
)

// Shape adapts the reconciliation steps to one admin API layout: where
// resources live, what their payloads look like, and which status codes
// count as success.
type Shape interface {
	// Name identifies the shape in logs and metrics.
	Name() string

	// ServicesPath is the collection new services are POSTed to.
	ServicesPath() string
	// ServicePath addresses one service by name (GET, PATCH).
	ServicePath(service string) string

	// SupportsRoutes reports whether routing lives on a separate route
	// resource. When false, RoutesPath, RoutePath and RoutePayload are
	// never called.
	SupportsRoutes() bool
	RoutesPath(service string) string
	RoutePath(service, routeID string) string

	// PluginsPath lists plugins of a service and accepts new ones.
	PluginsPath(service string) string
	// PluginPath addresses one plugin of a service (DELETE).
	PluginPath(service, pluginID string) string

	ServicePayload(svc *ServiceInfo) (map[string]any, error)
	RoutePayload(svc *ServiceInfo) (map[string]any, error)

	// Created reports whether status means a POST created the resource.
	Created(status int) bool
	// Succeeded reports whether status means a read or update succeeded.
	Succeeded(status int) bool
}

var shapes = map[string]Shape{
	ShapeKongV0:     KongV0{},
	"flat":          KongV0{},
	ShapeKongV2:     KongV2{},
	"service-route": KongV2{},
}

// ShapeByName returns the shape registered under name. An empty name
// selects KongV0, the historical default.
func ShapeByName(name string) (Shape, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return KongV0{}, nil
	}
	s, ok := shapes[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownShape, name, strings.Join(ShapeNames(), ", "))
	}
	return s, nil
}

// ShapeNames lists the accepted shape names, aliases included.
func ShapeNames() []string {
	names := make([]string, 0, len(shapes))
	for n := range shapes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Both built-in shapes share Kong's status conventions.

func kongCreated(status int) bool {
	return status == http.StatusCreated
}

func kongSucceeded(status int) bool {
	return status == http.StatusOK
}
