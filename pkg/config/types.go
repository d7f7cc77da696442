package config

import (
	"time"

	"github.com/getmockd/kongreg/pkg/registry"
)

// Config is the complete kongreg configuration.
type Config struct {
	Gateway GatewayConfig     `yaml:"gateway" json:"gateway"`
	Service ServiceConfig     `yaml:"service" json:"service"`
	Plugins []registry.Plugin `yaml:"plugins,omitempty" json:"plugins,omitempty"`

	// File is the config file the values were read from, if any.
	File string `yaml:"-" json:"-"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `yaml:"-" json:"-"`
}

// GatewayConfig describes the gateway admin API.
type GatewayConfig struct {
	URL     string        `yaml:"url" json:"url"`
	Adapter string        `yaml:"adapter" json:"adapter"`
	Token   string        `yaml:"token,omitempty" json:"-"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// RateLimit caps admin API requests per second. Zero disables it.
	RateLimit float64 `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`
	RateBurst int     `yaml:"rateBurst,omitempty" json:"rateBurst,omitempty"`
}

// ServiceConfig is the service definition. The typed tuning fields map to
// the registry properties of the same name; nil means "not set".
type ServiceConfig struct {
	Name  string   `yaml:"name" json:"name"`
	Host  string   `yaml:"host" json:"host"`
	Port  int      `yaml:"port" json:"port"`
	Paths []string `yaml:"paths" json:"paths"`

	PreserveHost           *bool `yaml:"preserveHost,omitempty" json:"preserveHost,omitempty"`
	Retries                *int  `yaml:"retries,omitempty" json:"retries,omitempty"`
	StripURI               *bool `yaml:"stripUri,omitempty" json:"stripUri,omitempty"`
	UpstreamConnectTimeout *int  `yaml:"upstreamConnectTimeout,omitempty" json:"upstreamConnectTimeout,omitempty"`
	UpstreamReadTimeout    *int  `yaml:"upstreamReadTimeout,omitempty" json:"upstreamReadTimeout,omitempty"`
	UpstreamSendTimeout    *int  `yaml:"upstreamSendTimeout,omitempty" json:"upstreamSendTimeout,omitempty"`
	HTTPSOnly              *bool `yaml:"httpsOnly,omitempty" json:"httpsOnly,omitempty"`
	HTTPIfTerminated       *bool `yaml:"httpIfTerminated,omitempty" json:"httpIfTerminated,omitempty"`

	// Properties are passed to the gateway as-is, after the typed fields
	// above are applied on top.
	Properties map[string]any `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// ConfigSource identifies where a config value originated.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)
