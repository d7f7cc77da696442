package registry

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// MaxPort is the highest valid service port.
const MaxPort = 65535

// ServiceInfo is the desired state of one service on the gateway: where
// its upstream lives, which paths route to it, extra tuning properties and
// the plugins attached to it.
//
// A ServiceInfo is immutable. Build one with NewService; accessors return
// copies.
type ServiceInfo struct {
	name       string
	host       string
	port       int
	paths      []string
	properties map[string]any
	plugins    []Plugin
}

// Definition is the plain-data view of a ServiceInfo, used for output and
// for logging.
type Definition struct {
	Name       string         `json:"name" yaml:"name"`
	Host       string         `json:"host" yaml:"host"`
	Port       int            `json:"port" yaml:"port"`
	Paths      []string       `json:"paths" yaml:"paths"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
	Plugins    []Plugin       `json:"plugins,omitempty" yaml:"plugins,omitempty"`
}

// Name returns the service name, its identity on the gateway.
func (s *ServiceInfo) Name() string { return s.name }

// Host returns the upstream host.
func (s *ServiceInfo) Host() string { return s.host }

// Port returns the upstream port.
func (s *ServiceInfo) Port() int { return s.port }

// Paths returns a copy of the route path patterns.
func (s *ServiceInfo) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Property returns the value of a single property.
func (s *ServiceInfo) Property(key string) (any, bool) {
	v, ok := s.properties[key]
	return v, ok
}

// Properties returns a copy of the properties.
func (s *ServiceInfo) Properties() map[string]any {
	out := make(map[string]any, len(s.properties))
	for k, v := range s.properties {
		out[k] = v
	}
	return out
}

// Plugins returns a copy of the plugins in declaration order.
func (s *ServiceInfo) Plugins() []Plugin {
	out := make([]Plugin, len(s.plugins))
	for i, p := range s.plugins {
		out[i] = p.clone()
	}
	return out
}

// UpstreamURL returns the URL the gateway forwards traffic to.
func (s *ServiceInfo) UpstreamURL() string {
	return "http://" + net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// Definition returns a plain-data copy of s.
func (s *ServiceInfo) Definition() Definition {
	d := Definition{
		Name:    s.name,
		Host:    s.host,
		Port:    s.port,
		Paths:   s.Paths(),
		Plugins: s.Plugins(),
	}
	if len(s.properties) > 0 {
		d.Properties = s.Properties()
	}
	return d
}

// MarshalJSON encodes the Definition view.
func (s *ServiceInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Definition())
}

func (s *ServiceInfo) String() string {
	plugins := make([]string, len(s.plugins))
	for i, p := range s.plugins {
		plugins[i] = p.String()
	}
	return fmt.Sprintf("ServiceInfo{name=%s, host=%s, port=%d, paths=[%s], properties=%v, plugins=[%s]}",
		s.name, s.host, s.port, strings.Join(s.paths, ","), s.properties, strings.Join(plugins, ", "))
}

// Validate checks the invariants every registration depends on.
func (s *ServiceInfo) Validate() error {
	if s == nil {
		return &ValidationError{Message: "service definition is nil"}
	}
	if strings.TrimSpace(s.host) == "" {
		return &ValidationError{Field: "host", Message: "cannot be empty"}
	}
	if s.port <= 0 || s.port > MaxPort {
		return &ValidationError{Field: "port", Message: fmt.Sprintf("%d is out of range (1-%d)", s.port, MaxPort)}
	}
	if strings.TrimSpace(s.name) == "" {
		return &ValidationError{Field: "name", Message: "cannot be empty"}
	}
	if len(s.paths) == 0 {
		return &ValidationError{Field: "paths", Message: "at least one path is required"}
	}
	for i, p := range s.paths {
		if strings.TrimSpace(p) == "" {
			return &ValidationError{Field: fmt.Sprintf("paths[%d]", i), Message: "cannot be empty"}
		}
	}
	for k, v := range s.properties {
		if k == "" {
			return &ValidationError{Field: "properties", Message: "property name cannot be empty"}
		}
		if !isScalar(v) {
			return &ValidationError{Field: "properties." + k, Message: fmt.Sprintf("unsupported value type %T", v)}
		}
	}
	if _, err := typedProperties(s.properties); err != nil {
		return err
	}
	for i, p := range s.plugins {
		if strings.TrimSpace(p.Name) == "" {
			return &ValidationError{Field: fmt.Sprintf("plugins[%d].name", i), Message: "cannot be empty"}
		}
	}
	return nil
}

// Builder collects the parts of a ServiceInfo. Setters do no checking;
// Build validates the result once.
type Builder struct {
	name       string
	host       string
	port       int
	paths      []string
	properties map[string]any
	plugins    []Plugin
}

// NewService starts a Builder for the service with the given name.
func NewService(name string) *Builder {
	return &Builder{
		name:       name,
		properties: make(map[string]any),
	}
}

// Name sets the service name.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// Host sets the upstream host.
func (b *Builder) Host(host string) *Builder {
	b.host = host
	return b
}

// Port sets the upstream port.
func (b *Builder) Port(port int) *Builder {
	b.port = port
	return b
}

// AddPath appends route path patterns.
func (b *Builder) AddPath(paths ...string) *Builder {
	b.paths = append(b.paths, paths...)
	return b
}

// SetProperty sets a property. A nil value removes it.
func (b *Builder) SetProperty(key string, value any) *Builder {
	if value == nil {
		delete(b.properties, key)
		return b
	}
	b.properties[key] = value
	return b
}

// SetProperties sets every entry of props.
func (b *Builder) SetProperties(props map[string]any) *Builder {
	for k, v := range props {
		b.SetProperty(k, v)
	}
	return b
}

// AddPlugin appends a plugin. Plugins are installed in the order added.
func (b *Builder) AddPlugin(plugins ...Plugin) *Builder {
	for _, p := range plugins {
		b.plugins = append(b.plugins, p.clone())
	}
	return b
}

// Build validates the collected data and returns an immutable ServiceInfo.
func (b *Builder) Build() (*ServiceInfo, error) {
	svc := &ServiceInfo{
		name:       b.name,
		host:       b.host,
		port:       b.port,
		paths:      append([]string(nil), b.paths...),
		properties: make(map[string]any, len(b.properties)),
		plugins:    make([]Plugin, len(b.plugins)),
	}
	for k, v := range b.properties {
		svc.properties[k] = v
	}
	for i, p := range b.plugins {
		svc.plugins[i] = p.clone()
	}
	if err := svc.Validate(); err != nil {
		return nil, err
	}
	return svc, nil
}
