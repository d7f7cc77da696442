package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
gateway:
  url: http://kong:8001
  adapter: kong-v2
  timeout: 5s
service:
  name: users
  host: users.internal
  port: 8080
  paths:
    - /users
  retries: 2
  httpsOnly: true
  properties:
    tags: edge
plugins:
  - name: cors
    properties:
      config.origins: "*"
      config.max_age: 3600
  - name: key-auth
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()

	_, err := FindConfigFile("", dir, nil)
	assert.True(t, errors.Is(err, ErrNoConfig))

	yml := writeFile(t, dir, "kongreg.yml", "{}")
	got, err := FindConfigFile("", dir, nil)
	require.NoError(t, err)
	assert.Equal(t, yml, got)

	yaml := writeFile(t, dir, "kongreg.yaml", "{}")
	got, err = FindConfigFile("", dir, nil)
	require.NoError(t, err)
	assert.Equal(t, yaml, got, "kongreg.yaml takes precedence")

	fromEnv := writeFile(t, t.TempDir(), "env.yaml", "{}")
	got, err = FindConfigFile("", dir, map[string]string{EnvConfig: fromEnv})
	require.NoError(t, err)
	assert.Equal(t, fromEnv, got)

	explicit := writeFile(t, t.TempDir(), "explicit.yaml", "{}")
	got, err = FindConfigFile(explicit, dir, map[string]string{EnvConfig: fromEnv})
	require.NoError(t, err)
	assert.Equal(t, explicit, got)

	_, err = FindConfigFile(filepath.Join(dir, "missing.yaml"), dir, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.False(t, errors.Is(err, ErrNoConfig))
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "kongreg.yaml", sampleConfig)

	cfg, err := Load(Options{Dir: dir, Environ: []string{}})
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "http://kong:8001", cfg.Gateway.URL)
	assert.Equal(t, "kong-v2", cfg.Gateway.Adapter)
	assert.Equal(t, 5*time.Second, cfg.Gateway.Timeout)

	assert.Equal(t, "users", cfg.Service.Name)
	assert.Equal(t, 8080, cfg.Service.Port)
	assert.Equal(t, []string{"/users"}, cfg.Service.Paths)
	assert.Equal(t, 2, *cfg.Service.Retries)
	assert.True(t, *cfg.Service.HTTPSOnly)
	assert.Equal(t, DefaultUpstreamSendTimeout, *cfg.Service.UpstreamSendTimeout)
	assert.Equal(t, "edge", cfg.Service.Properties["tags"])

	require.Len(t, cfg.Plugins, 2)
	assert.Equal(t, "cors", cfg.Plugins[0].Name)
	assert.Equal(t, "3600", cfg.Plugins[0].Properties["config.max_age"])
	assert.Equal(t, "key-auth", cfg.Plugins[1].Name)

	assert.Equal(t, SourceFile, cfg.Sources["service.retries"])
	assert.Equal(t, SourceDefault, cfg.Sources["service.stripUri"])
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "kongreg.yaml", sampleConfig)

	cfg, err := Load(Options{Dir: dir, Environ: []string{
		"KONGREG_SERVICE_PORT=9090",
		"KONGREG_GATEWAY_ADAPTER=kong-v0",
		"KONGREG_PLUGINS_cors_config_origins=example.com",
	}})
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Service.Port)
	assert.Equal(t, "kong-v0", cfg.Gateway.Adapter)
	assert.Equal(t, SourceEnv, cfg.Sources["service.port"])
	assert.Equal(t, "example.com", cfg.Plugins[0].Properties["config.origins"])
	assert.Len(t, cfg.Plugins, 2)
}

func TestLoad_EnvOnly(t *testing.T) {
	cfg, err := Load(Options{Dir: t.TempDir(), Environ: []string{
		"KONGREG_GATEWAY_URL=http://kong:8001",
		"KONGREG_SERVICE_NAME=users",
		"KONGREG_SERVICE_HOST=users.internal",
		"KONGREG_SERVICE_PORT=8080",
		"KONGREG_SERVICE_PATHS=/users",
	}})
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.Equal(t, DefaultAdapter, cfg.Gateway.Adapter)
	require.NoError(t, cfg.Validate())
}

func TestLoad_NothingConfigured(t *testing.T) {
	_, err := Load(Options{Dir: t.TempDir(), Environ: []string{"HOME=/root"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoConfig))
	assert.Contains(t, err.Error(), EnvServiceName)
}

func TestLoad_ConfigFromEnvVariable(t *testing.T) {
	path := writeFile(t, t.TempDir(), "custom.yaml", sampleConfig)

	cfg, err := Load(Options{Dir: t.TempDir(), Environ: []string{EnvConfig + "=" + path}})
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
}

func TestLoad_SchemaViolation(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "kongreg.yaml", `
service:
  name: users
  port: 70000
  paths: []
  colour: blue
plugins:
  - properties:
      config.x: 1
`)

	_, err := Load(Options{Dir: dir, Environ: []string{}})
	require.Error(t, err)

	var sve *SchemaValidationError
	require.True(t, errors.As(err, &sve), "got %T: %v", err, err)
	assert.Equal(t, path, sve.File)

	paths := make([]string, len(sve.Errors))
	for i, e := range sve.Errors {
		paths[i] = e.Path
	}
	assert.Contains(t, paths, "service.port")
	assert.Contains(t, paths, "service.paths")
	assert.Contains(t, paths, "service")
	assert.Contains(t, paths, "plugins[0]")
	assert.Contains(t, err.Error(), path)
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "kongreg.yaml", "service: [unclosed\n")

	_, err := Load(Options{Dir: dir, Environ: []string{}})
	require.Error(t, err)
	var ce *ConfigError
	assert.True(t, errors.As(err, &ce))
}

func TestMergeConfig_OnlySetValues(t *testing.T) {
	target := NewDefault()
	source := &Config{Service: ServiceConfig{StripURI: ptr(false)}}

	MergeConfig(target, source, SourceFile)

	assert.False(t, *target.Service.StripURI)
	assert.Equal(t, DefaultRetries, *target.Service.Retries)
	assert.Equal(t, DefaultAdapter, target.Gateway.Adapter)
	assert.Equal(t, SourceFile, target.Sources["service.stripUri"])
	assert.Equal(t, SourceDefault, target.Sources["service.retries"])
}

func TestLoadFile_ShippedExample(t *testing.T) {
	cfg, err := LoadFile(filepath.Join("..", "..", "examples", "with-config-file", "kongreg.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "users", cfg.Service.Name)
	assert.Equal(t, "kong-v2", cfg.Gateway.Adapter)
	require.Len(t, cfg.Plugins, 2)
	assert.Equal(t, "3600", cfg.Plugins[0].Properties["config.max_age"])
}
