package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/getmockd/kongreg/pkg/gatewayclient"
	"github.com/getmockd/kongreg/pkg/registry"
)

// SetGatewayURL overrides the gateway URL from a command-line flag.
func (c *Config) SetGatewayURL(v string) {
	c.Gateway.URL = v
	c.mark("gateway.url", SourceFlag)
}

// SetAdapter overrides the gateway adapter from a command-line flag.
func (c *Config) SetAdapter(v string) {
	c.Gateway.Adapter = v
	c.mark("gateway.adapter", SourceFlag)
}

func (c *Config) mark(key, source string) {
	if c.Sources == nil {
		c.Sources = make(map[string]string)
	}
	c.Sources[key] = source
}

// ServiceInfo builds the validated service definition. Typed service
// fields win over entries of the same name in service.properties.
func (c *Config) ServiceInfo() (*registry.ServiceInfo, error) {
	s := c.Service
	b := registry.NewService(s.Name).
		Host(s.Host).
		Port(s.Port).
		AddPath(s.Paths...).
		SetProperties(s.Properties)

	setProp(b, registry.PropPreserveHost, s.PreserveHost)
	setProp(b, registry.PropRetries, s.Retries)
	setProp(b, registry.PropStripURI, s.StripURI)
	setProp(b, registry.PropUpstreamConnectTimeout, s.UpstreamConnectTimeout)
	setProp(b, registry.PropUpstreamReadTimeout, s.UpstreamReadTimeout)
	setProp(b, registry.PropUpstreamSendTimeout, s.UpstreamSendTimeout)
	setProp(b, registry.PropHTTPSOnly, s.HTTPSOnly)
	setProp(b, registry.PropHTTPIfTerminated, s.HTTPIfTerminated)

	return b.AddPlugin(c.Plugins...).Build()
}

func setProp[T any](b *registry.Builder, key string, v *T) {
	if v != nil {
		b.SetProperty(key, *v)
	}
}

// Shape returns the gateway shape named by gateway.adapter.
func (c *Config) Shape() (registry.Shape, error) {
	return registry.ShapeByName(c.Gateway.Adapter)
}

// ClientOptions returns the gateway client options the config asks for.
func (c *Config) ClientOptions() []gatewayclient.Option {
	var opts []gatewayclient.Option
	if c.Gateway.Timeout > 0 {
		opts = append(opts, gatewayclient.WithTimeout(c.Gateway.Timeout))
	}
	if c.Gateway.Token != "" {
		opts = append(opts, gatewayclient.WithToken(c.Gateway.Token))
	}
	if c.Gateway.RateLimit > 0 {
		opts = append(opts, gatewayclient.WithRateLimit(c.Gateway.RateLimit, c.Gateway.RateBurst))
	}
	return opts
}

// Validate checks that the config describes a complete registration:
// a usable gateway URL, a known adapter and a valid service definition.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Gateway.URL == "" {
		errs = append(errs, fmt.Errorf("gateway.url: required (set it in the config file, %s or --gateway-url)", EnvGatewayURL))
	} else if u, err := url.Parse(c.Gateway.URL); err != nil {
		errs = append(errs, fmt.Errorf("gateway.url: %w", err))
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("gateway.url: %q must be an absolute http(s) URL", c.Gateway.URL))
	}

	if _, err := c.Shape(); err != nil {
		errs = append(errs, fmt.Errorf("gateway.adapter: %w", err))
	}
	if c.Gateway.Timeout < 0 {
		errs = append(errs, errors.New("gateway.timeout: must not be negative"))
	}
	if c.Gateway.RateLimit < 0 {
		errs = append(errs, errors.New("gateway.rateLimit: must not be negative"))
	}

	if _, err := c.ServiceInfo(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Resolved is the printable view of a loaded config. The gateway token is
// never included.
type Resolved struct {
	File    string              `json:"file,omitempty" yaml:"file,omitempty"`
	Gateway ResolvedGateway     `json:"gateway" yaml:"gateway"`
	Service registry.Definition `json:"service" yaml:"service"`
	Sources map[string]string   `json:"sources,omitempty" yaml:"sources,omitempty"`
}

// ResolvedGateway is the printable gateway section.
type ResolvedGateway struct {
	URL           string  `json:"url" yaml:"url"`
	Adapter       string  `json:"adapter" yaml:"adapter"`
	Timeout       string  `json:"timeout" yaml:"timeout"`
	RateLimit     float64 `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"`
	Authenticated bool    `json:"authenticated" yaml:"authenticated"`
}

// Resolve validates the config and returns its printable view.
func (c *Config) Resolve() (*Resolved, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	shape, _ := c.Shape()
	svc, _ := c.ServiceInfo()

	sources := make(map[string]string, len(c.Sources))
	for k, v := range c.Sources {
		sources[k] = v
	}
	return &Resolved{
		File: c.File,
		Gateway: ResolvedGateway{
			URL:           c.Gateway.URL,
			Adapter:       shape.Name(),
			Timeout:       c.Gateway.Timeout.String(),
			RateLimit:     c.Gateway.RateLimit,
			Authenticated: c.Gateway.Token != "",
		},
		Service: svc.Definition(),
		Sources: sources,
	}, nil
}
