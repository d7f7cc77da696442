package registry

import (
	"net/url"
	"strings"
)

// KongV0 is the flat Kong 0.x layout: one /apis resource per service that
// holds the upstream URL, the matched URIs and every tuning flag. Plugins
// hang directly off the API.
type KongV0 struct{}

var _ Shape = KongV0{}

func (KongV0) Name() string { return ShapeKongV0 }

func (KongV0) ServicesPath() string { return "/apis" }

func (KongV0) ServicePath(service string) string {
	return "/apis/" + url.PathEscape(service)
}

func (KongV0) SupportsRoutes() bool { return false }

func (KongV0) RoutesPath(string) string { return "" }

func (KongV0) RoutePath(string, string) string { return "" }

func (k KongV0) PluginsPath(service string) string {
	return k.ServicePath(service) + "/plugins"
}

func (k KongV0) PluginPath(service, pluginID string) string {
	return k.PluginsPath(service) + "/" + url.PathEscape(pluginID)
}

// ServicePayload passes every property through and sets name,
// upstream_url and uris on top.
func (KongV0) ServicePayload(svc *ServiceInfo) (map[string]any, error) {
	payload, err := typedProperties(svc.properties)
	if err != nil {
		return nil, err
	}
	payload["name"] = svc.name
	payload["upstream_url"] = svc.UpstreamURL()
	payload["uris"] = strings.Join(svc.paths, ",")
	return payload, nil
}

func (KongV0) RoutePayload(*ServiceInfo) (map[string]any, error) { return nil, nil }

func (KongV0) Created(status int) bool { return kongCreated(status) }

func (KongV0) Succeeded(status int) bool { return kongSucceeded(status) }
