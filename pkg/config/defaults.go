package config

import (
	"github.com/getmockd/kongreg/pkg/gatewayclient"
	"github.com/getmockd/kongreg/pkg/registry"
)

// Service defaults. They match what Kong itself applies to a new API.
const (
	DefaultPreserveHost           = false
	DefaultRetries                = 5
	DefaultStripURI               = true
	DefaultUpstreamConnectTimeout = 60000
	DefaultUpstreamReadTimeout    = 60000
	DefaultUpstreamSendTimeout    = 60000
	DefaultHTTPSOnly              = false
	DefaultHTTPIfTerminated       = false
)

// DefaultAdapter is the gateway shape used when none is configured.
const DefaultAdapter = registry.ShapeKongV0

// DefaultTimeout is the admin API request timeout.
const DefaultTimeout = gatewayclient.DefaultTimeout

// NewDefault creates a Config holding only default values.
func NewDefault() *Config {
	cfg := &Config{
		Gateway: GatewayConfig{
			Adapter: DefaultAdapter,
			Timeout: DefaultTimeout,
		},
		Service: ServiceConfig{
			PreserveHost:           ptr(DefaultPreserveHost),
			Retries:                ptr(DefaultRetries),
			StripURI:               ptr(DefaultStripURI),
			UpstreamConnectTimeout: ptr(DefaultUpstreamConnectTimeout),
			UpstreamReadTimeout:    ptr(DefaultUpstreamReadTimeout),
			UpstreamSendTimeout:    ptr(DefaultUpstreamSendTimeout),
			HTTPSOnly:              ptr(DefaultHTTPSOnly),
			HTTPIfTerminated:       ptr(DefaultHTTPIfTerminated),
		},
		Sources: make(map[string]string),
	}

	for _, key := range []string{
		"gateway.adapter",
		"gateway.timeout",
		"service.preserveHost",
		"service.retries",
		"service.stripUri",
		"service.upstreamConnectTimeout",
		"service.upstreamReadTimeout",
		"service.upstreamSendTimeout",
		"service.httpsOnly",
		"service.httpIfTerminated",
	} {
		cfg.Sources[key] = SourceDefault
	}
	return cfg
}

func ptr[T any](v T) *T {
	return &v
}
