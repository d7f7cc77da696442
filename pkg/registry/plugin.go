package registry

import (
	"fmt"
	"sort"
	"strings"
)

// ConfigPrefix marks plugin properties that belong to the gateway plugin's
// config object. Properties without it are local metadata.
const ConfigPrefix = "config."

// Plugin is a gateway extension (CORS, auth, rate limiting...) attached to
// a service.
type Plugin struct {
	Name       string            `json:"name" yaml:"name"`
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// NewPlugin returns a plugin with no properties.
func NewPlugin(name string) Plugin {
	return Plugin{Name: name}
}

// Set returns a copy of p with the property key set to value.
func (p Plugin) Set(key, value string) Plugin {
	out := p.clone()
	if out.Properties == nil {
		out.Properties = make(map[string]string)
	}
	out.Properties[key] = value
	return out
}

// Config returns the config.* properties with the prefix removed.
func (p Plugin) Config() map[string]string {
	cfg := make(map[string]string)
	for k, v := range p.Properties {
		if !strings.HasPrefix(k, ConfigPrefix) {
			continue
		}
		key := strings.TrimPrefix(k, ConfigPrefix)
		if key == "" {
			continue
		}
		cfg[key] = v
	}
	return cfg
}

func (p Plugin) String() string {
	keys := make([]string, 0, len(p.Properties))
	for k := range p.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + p.Properties[k]
	}
	return fmt.Sprintf("Plugin{name=%s, properties={%s}}", p.Name, strings.Join(parts, ", "))
}

func (p Plugin) clone() Plugin {
	out := Plugin{Name: p.Name}
	if p.Properties != nil {
		out.Properties = make(map[string]string, len(p.Properties))
		for k, v := range p.Properties {
			out.Properties[k] = v
		}
	}
	return out
}

// pluginPayload is the body sent to install a plugin.
type pluginPayload struct {
	Name   string            `json:"name"`
	Config map[string]string `json:"config,omitempty"`
}

func (p Plugin) payload() pluginPayload {
	cfg := p.Config()
	if len(cfg) == 0 {
		cfg = nil
	}
	return pluginPayload{Name: p.Name, Config: cfg}
}
