package registry

import (
	"net/url"
)

// KongV2 is the Kong 1.x+ layout: a /services resource for the upstream
// and a /routes sub-resource for path matching, protocols and host
// handling. Plugins are attached under the service name.
type KongV2 struct{}

var _ Shape = KongV2{}

// Protocol lists sent on the route.
var (
	protocolsHTTPSOnly = []string{"https"}
	protocolsAll       = []string{"https", "http"}
)

// Flat-API properties consumed by KongV2. They are mapped onto service or
// route fields, or dropped when Kong 2 has no equivalent; all other
// properties are passed through on the service.
var v2Consumed = map[string]bool{
	PropPreserveHost:           true,
	PropRetries:                true,
	PropStripURI:               true,
	PropUpstreamConnectTimeout: true,
	PropUpstreamReadTimeout:    true,
	PropUpstreamSendTimeout:    true,
	PropHTTPSOnly:              true,
	PropHTTPIfTerminated:       true,
}

// service field <- property
var v2ServiceInts = [][2]string{
	{"retries", PropRetries},
	{"connect_timeout", PropUpstreamConnectTimeout},
	{"read_timeout", PropUpstreamReadTimeout},
	{"write_timeout", PropUpstreamSendTimeout},
}

func (KongV2) Name() string { return ShapeKongV2 }

func (KongV2) ServicesPath() string { return "/services" }

func (KongV2) ServicePath(service string) string {
	return "/services/" + url.PathEscape(service)
}

func (KongV2) SupportsRoutes() bool { return true }

func (k KongV2) RoutesPath(service string) string {
	return k.ServicePath(service) + "/routes"
}

func (k KongV2) RoutePath(service, routeID string) string {
	return k.RoutesPath(service) + "/" + url.PathEscape(routeID)
}

func (k KongV2) PluginsPath(service string) string {
	return k.ServicePath(service) + "/plugins"
}

func (k KongV2) PluginPath(service, pluginID string) string {
	return k.PluginsPath(service) + "/" + url.PathEscape(pluginID)
}

func (KongV2) ServicePayload(svc *ServiceInfo) (map[string]any, error) {
	payload := make(map[string]any)
	for k, v := range svc.properties {
		if !v2Consumed[k] {
			payload[k] = v
		}
	}
	payload["name"] = svc.name
	payload["url"] = svc.UpstreamURL()

	for _, m := range v2ServiceInts {
		n, ok, err := intProperty(svc.properties, m[1])
		if err != nil {
			return nil, err
		}
		if ok {
			payload[m[0]] = n
		}
	}
	return payload, nil
}

func (KongV2) RoutePayload(svc *ServiceInfo) (map[string]any, error) {
	payload := map[string]any{
		"paths": append([]string(nil), svc.paths...),
	}

	if v, ok, err := boolProperty(svc.properties, PropPreserveHost); err != nil {
		return nil, err
	} else if ok {
		payload["preserve_host"] = v
	}
	if v, ok, err := boolProperty(svc.properties, PropStripURI); err != nil {
		return nil, err
	} else if ok {
		payload["strip_path"] = v
	}

	httpsOnly, _, err := boolProperty(svc.properties, PropHTTPSOnly)
	if err != nil {
		return nil, err
	}
	payload["protocols"] = routeProtocols(httpsOnly)
	return payload, nil
}

func (KongV2) Created(status int) bool { return kongCreated(status) }

func (KongV2) Succeeded(status int) bool { return kongSucceeded(status) }

func routeProtocols(httpsOnly bool) []string {
	if httpsOnly {
		return append([]string(nil), protocolsHTTPSOnly...)
	}
	return append([]string(nil), protocolsAll...)
}
