package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/getmockd/kongreg/pkg/registry"
)

// Environment variable names
const (
	EnvConfig = "KONGREG_CONFIG"

	EnvGatewayURL       = "KONGREG_GATEWAY_URL"
	EnvGatewayAdapter   = "KONGREG_GATEWAY_ADAPTER"
	EnvGatewayToken     = "KONGREG_GATEWAY_TOKEN"
	EnvGatewayTimeout   = "KONGREG_GATEWAY_TIMEOUT"
	EnvGatewayRateLimit = "KONGREG_GATEWAY_RATE_LIMIT"

	EnvServiceName                   = "KONGREG_SERVICE_NAME"
	EnvServiceHost                   = "KONGREG_SERVICE_HOST"
	EnvServicePort                   = "KONGREG_SERVICE_PORT"
	EnvServicePaths                  = "KONGREG_SERVICE_PATHS"
	EnvServicePreserveHost           = "KONGREG_SERVICE_PRESERVE_HOST"
	EnvServiceRetries                = "KONGREG_SERVICE_RETRIES"
	EnvServiceStripURI               = "KONGREG_SERVICE_STRIP_URI"
	EnvServiceUpstreamConnectTimeout = "KONGREG_SERVICE_UPSTREAM_CONNECT_TIMEOUT"
	EnvServiceUpstreamReadTimeout    = "KONGREG_SERVICE_UPSTREAM_READ_TIMEOUT"
	EnvServiceUpstreamSendTimeout    = "KONGREG_SERVICE_UPSTREAM_SEND_TIMEOUT"
	EnvServiceHTTPSOnly              = "KONGREG_SERVICE_HTTPS_ONLY"
	EnvServiceHTTPIfTerminated       = "KONGREG_SERVICE_HTTP_IF_TERMINATED"

	// EnvPluginsPrefix starts every plugin property variable:
	// KONGREG_PLUGINS_<plugin>_<property>.
	EnvPluginsPrefix = "KONGREG_PLUGINS_"
)

// LoadEnv applies environment overrides to cfg. env maps variable names
// to values. Malformed values are collected and returned together.
func LoadEnv(cfg *Config, env map[string]string) error {
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]string)
	}
	var errs []error
	set := func(key string) { cfg.Sources[key] = SourceEnv }

	str := func(name, key string, dst *string) {
		if v := strings.TrimSpace(env[name]); v != "" {
			*dst = v
			set(key)
		}
	}
	integer := func(name, key string, dst **int) {
		v := strings.TrimSpace(env[name])
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid integer %q", name, v))
			return
		}
		*dst = ptr(n)
		set(key)
	}
	boolean := func(name, key string, dst **bool) {
		v := strings.TrimSpace(env[name])
		if v == "" {
			return
		}
		b, err := parseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = ptr(b)
		set(key)
	}

	str(EnvGatewayURL, "gateway.url", &cfg.Gateway.URL)
	str(EnvGatewayAdapter, "gateway.adapter", &cfg.Gateway.Adapter)
	str(EnvGatewayToken, "gateway.token", &cfg.Gateway.Token)
	if v := strings.TrimSpace(env[EnvGatewayTimeout]); v != "" {
		if d, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", EnvGatewayTimeout, v))
		} else {
			cfg.Gateway.Timeout = d
			set("gateway.timeout")
		}
	}
	if v := strings.TrimSpace(env[EnvGatewayRateLimit]); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err != nil || f < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid rate %q", EnvGatewayRateLimit, v))
		} else {
			cfg.Gateway.RateLimit = f
			set("gateway.rateLimit")
		}
	}

	str(EnvServiceName, "service.name", &cfg.Service.Name)
	str(EnvServiceHost, "service.host", &cfg.Service.Host)
	if v := strings.TrimSpace(env[EnvServicePort]); v != "" {
		if n, err := strconv.Atoi(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid integer %q", EnvServicePort, v))
		} else {
			cfg.Service.Port = n
			set("service.port")
		}
	}
	if v := strings.TrimSpace(env[EnvServicePaths]); v != "" {
		cfg.Service.Paths = splitList(v)
		set("service.paths")
	}
	boolean(EnvServicePreserveHost, "service.preserveHost", &cfg.Service.PreserveHost)
	integer(EnvServiceRetries, "service.retries", &cfg.Service.Retries)
	boolean(EnvServiceStripURI, "service.stripUri", &cfg.Service.StripURI)
	integer(EnvServiceUpstreamConnectTimeout, "service.upstreamConnectTimeout", &cfg.Service.UpstreamConnectTimeout)
	integer(EnvServiceUpstreamReadTimeout, "service.upstreamReadTimeout", &cfg.Service.UpstreamReadTimeout)
	integer(EnvServiceUpstreamSendTimeout, "service.upstreamSendTimeout", &cfg.Service.UpstreamSendTimeout)
	boolean(EnvServiceHTTPSOnly, "service.httpsOnly", &cfg.Service.HTTPSOnly)
	boolean(EnvServiceHTTPIfTerminated, "service.httpIfTerminated", &cfg.Service.HTTPIfTerminated)

	for _, p := range EnvPlugins(env) {
		cfg.Plugins = mergePlugin(cfg.Plugins, p)
		set("plugins." + p.Name)
	}

	return errors.Join(errs...)
}

// EnvPlugins collects the plugins declared through KONGREG_PLUGINS_*
// variables, sorted by plugin name. Hyphens are kept in the plugin name
// (key-auth) but become underscores in the property name. Variables that
// do not name both a plugin and a property are ignored.
func EnvPlugins(env map[string]string) []registry.Plugin {
	byName := make(map[string]registry.Plugin)
	for key, value := range env {
		rest, ok := strings.CutPrefix(key, EnvPluginsPrefix)
		if !ok {
			continue
		}
		name, prop, ok := strings.Cut(underscoreToDot(rest), ".")
		if !ok || name == "" || prop == "" {
			continue
		}
		p, exists := byName[name]
		if !exists {
			p = registry.NewPlugin(name)
		}
		byName[name] = p.Set(kebabToUnderscore(prop), value)
	}

	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	plugins := make([]registry.Plugin, len(names))
	for i, n := range names {
		plugins[i] = byName[n]
	}
	return plugins
}

// mergePlugin adds p to plugins. A plugin already declared under the same
// name gets p's properties on top of its own.
func mergePlugin(plugins []registry.Plugin, p registry.Plugin) []registry.Plugin {
	for i := range plugins {
		if plugins[i].Name != p.Name {
			continue
		}
		for k, v := range p.Properties {
			plugins[i] = plugins[i].Set(k, v)
		}
		return plugins
	}
	return append(plugins, p)
}

// NormalizePropertyName turns an environment-style property name into
// dot notation:
//
//	test_prop   -> test.prop
//	test__prop  -> test_prop
//	test-prop   -> test_prop
//
// Underscore runs at either end of the name, or longer than two, are kept
// as they are. Names already in dot notation are unchanged.
func NormalizePropertyName(name string) string {
	return kebabToUnderscore(underscoreToDot(name))
}

func underscoreToDot(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '_' {
			b.WriteByte(s[i])
			i++
			continue
		}
		j := i
		for j < len(s) && s[j] == '_' {
			j++
		}
		inner := i > 0 && j < len(s)
		switch {
		case inner && j-i == 1:
			b.WriteByte('.')
		case inner && j-i == 2:
			b.WriteByte('_')
		default:
			b.WriteString(s[i:j])
		}
		i = j
	}
	return b.String()
}

func kebabToUnderscore(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid boolean %q", v)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
