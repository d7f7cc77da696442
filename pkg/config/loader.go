package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoConfig is returned when neither a config file nor a service
// definition in the environment could be found.
var ErrNoConfig = errors.New("no configuration found")

// ConfigFileNames are the names searched for in the working directory
// (in order).
var ConfigFileNames = []string{"kongreg.yaml", "kongreg.yml"}

// Options controls Load.
type Options struct {
	// Path is an explicit config file, usually from --config.
	Path string

	// Dir is searched for ConfigFileNames. Defaults to the working
	// directory.
	Dir string

	// Environ is the environment in KEY=VALUE form. Defaults to
	// os.Environ().
	Environ []string
}

// ConfigError represents a config file that could not be decoded.
type ConfigError struct {
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Path + ": " + e.Message
}

// FindConfigFile returns the config file to load: path if set, then the
// file named by KONGREG_CONFIG, then the first of ConfigFileNames found in
// dir. It returns ErrNoConfig when no file applies.
func FindConfigFile(path, dir string, env map[string]string) (string, error) {
	if path == "" {
		path = env[EnvConfig]
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return path, nil
	}

	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = cwd
	}
	for _, name := range ConfigFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", ErrNoConfig
}

// SearchPaths returns the paths FindConfigFile tries when no explicit path
// is given.
func SearchPaths(dir string) []string {
	paths := make([]string, len(ConfigFileNames))
	for i, name := range ConfigFileNames {
		paths[i] = filepath.Join(dir, name)
	}
	return paths
}

// LoadFile reads, schema-validates and decodes a config file. The result
// holds only what the file sets; it is not merged with defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(path, data)
}

func parse(path string, data []byte) (*Config, error) {
	if err := ValidateDocument(data); err != nil {
		var sve *SchemaValidationError
		if errors.As(err, &sve) {
			sve.File = path
			return nil, sve
		}
		return nil, &ConfigError{Path: path, Message: err.Error()}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Path: path, Message: err.Error()}
	}
	cfg.File = path
	cfg.Sources = make(map[string]string)
	return &cfg, nil
}

// Load resolves the configuration from defaults, the config file and the
// environment.
func Load(opts Options) (*Config, error) {
	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}
	env := envMap(environ)

	cfg := NewDefault()

	path, err := FindConfigFile(opts.Path, opts.Dir, env)
	switch {
	case err == nil:
		fileCfg, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		MergeConfig(cfg, fileCfg, SourceFile)
		cfg.File = path
	case errors.Is(err, ErrNoConfig):
		// The environment may still carry everything.
	default:
		return nil, err
	}

	if err := LoadEnv(cfg, env); err != nil {
		return nil, err
	}

	if cfg.File == "" && cfg.Service.Name == "" {
		return nil, fmt.Errorf("%w: create %s, pass --config, or set %s",
			ErrNoConfig, ConfigFileNames[0], EnvServiceName)
	}
	return cfg, nil
}

// MergeConfig merges source into target, updating sources tracking. Only
// values set in source are applied.
func MergeConfig(target, source *Config, sourceType string) {
	if source == nil {
		return
	}
	if target.Sources == nil {
		target.Sources = make(map[string]string)
	}
	set := func(key string) { target.Sources[key] = sourceType }

	g := source.Gateway
	if g.URL != "" {
		target.Gateway.URL = g.URL
		set("gateway.url")
	}
	if g.Adapter != "" {
		target.Gateway.Adapter = g.Adapter
		set("gateway.adapter")
	}
	if g.Token != "" {
		target.Gateway.Token = g.Token
		set("gateway.token")
	}
	if g.Timeout != 0 {
		target.Gateway.Timeout = g.Timeout
		set("gateway.timeout")
	}
	if g.RateLimit != 0 {
		target.Gateway.RateLimit = g.RateLimit
		set("gateway.rateLimit")
	}
	if g.RateBurst != 0 {
		target.Gateway.RateBurst = g.RateBurst
		set("gateway.rateBurst")
	}

	s := source.Service
	if s.Name != "" {
		target.Service.Name = s.Name
		set("service.name")
	}
	if s.Host != "" {
		target.Service.Host = s.Host
		set("service.host")
	}
	if s.Port != 0 {
		target.Service.Port = s.Port
		set("service.port")
	}
	if len(s.Paths) > 0 {
		target.Service.Paths = append([]string(nil), s.Paths...)
		set("service.paths")
	}
	mergePtr(&target.Service.PreserveHost, s.PreserveHost, func() { set("service.preserveHost") })
	mergePtr(&target.Service.Retries, s.Retries, func() { set("service.retries") })
	mergePtr(&target.Service.StripURI, s.StripURI, func() { set("service.stripUri") })
	mergePtr(&target.Service.UpstreamConnectTimeout, s.UpstreamConnectTimeout, func() { set("service.upstreamConnectTimeout") })
	mergePtr(&target.Service.UpstreamReadTimeout, s.UpstreamReadTimeout, func() { set("service.upstreamReadTimeout") })
	mergePtr(&target.Service.UpstreamSendTimeout, s.UpstreamSendTimeout, func() { set("service.upstreamSendTimeout") })
	mergePtr(&target.Service.HTTPSOnly, s.HTTPSOnly, func() { set("service.httpsOnly") })
	mergePtr(&target.Service.HTTPIfTerminated, s.HTTPIfTerminated, func() { set("service.httpIfTerminated") })
	if len(s.Properties) > 0 {
		if target.Service.Properties == nil {
			target.Service.Properties = make(map[string]any, len(s.Properties))
		}
		for k, v := range s.Properties {
			target.Service.Properties[k] = v
			set("service.properties." + k)
		}
	}

	for _, p := range source.Plugins {
		target.Plugins = append(target.Plugins, p)
		set("plugins." + p.Name)
	}
}

func mergePtr[T any](dst **T, src *T, mark func()) {
	if src != nil {
		*dst = ptr(*src)
		mark()
	}
}

func envMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}
