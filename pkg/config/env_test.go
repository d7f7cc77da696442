package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/kongreg/pkg/registry"
)

func TestNormalizePropertyName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"test_prop", "test.prop"},
		{"test__prop", "test_prop"},
		{"test-prop", "test_prop"},
		{"test.prop", "test.prop"},
		{"property_some__value", "property.some_value"},
		{"a_b_c", "a.b.c"},
		{"cors_config_retry__timeout", "cors.config.retry_timeout"},
		{"_property_", "_property_"},
		{"_", "_"},
		{"__", "__"},
		{"___", "___"},
		{"a___b", "a___b"},
		{"-test-prop-", "_test_prop_"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePropertyName(tt.in), tt.in)
	}
}

func TestEnvPlugins(t *testing.T) {
	env := map[string]string{
		"KONGREG_PLUGINS_custom_config_test__prop":  "other_value",
		"KONGREG_PLUGINS_cors_config_test__prop":    "test_val",
		"KONGREG_PLUGINS_cors_config_max__delay":    "100",
		"KONGREG_PLUGINS_cors_config_headers":       "h1,h2",
		"KONGREG_PLUGINS_key-auth_config_key-names": "apikey",
		"KONGREG_PLUGINS_noproperty":                "ignored",
		"KONGREG_SERVICE_NAME":                      "not a plugin",
		"OTHER_PLUGINS_cors_config_x":               "ignored",
	}

	plugins := EnvPlugins(env)
	require.Len(t, plugins, 3)

	assert.Equal(t, "cors", plugins[0].Name)
	assert.Equal(t, map[string]string{
		"config.test_prop": "test_val",
		"config.max_delay": "100",
		"config.headers":   "h1,h2",
	}, plugins[0].Properties)

	assert.Equal(t, "custom", plugins[1].Name)
	assert.Equal(t, map[string]string{"config.test_prop": "other_value"}, plugins[1].Properties)

	assert.Equal(t, "key-auth", plugins[2].Name)
	assert.Equal(t, map[string]string{"config.key_names": "apikey"}, plugins[2].Properties)
}

func TestLoadEnv(t *testing.T) {
	cfg := NewDefault()
	err := LoadEnv(cfg, map[string]string{
		EnvGatewayURL:                    "http://kong:8001",
		EnvGatewayAdapter:                "kong-v2",
		EnvGatewayToken:                  "secret",
		EnvGatewayTimeout:                "3s",
		EnvGatewayRateLimit:              "2.5",
		EnvServiceName:                   "users",
		EnvServiceHost:                   "users.internal",
		EnvServicePort:                   "8080",
		EnvServicePaths:                  "/users, /accounts,,",
		EnvServicePreserveHost:           "yes",
		EnvServiceRetries:                "3",
		EnvServiceStripURI:               "false",
		EnvServiceUpstreamConnectTimeout: "1000",
		EnvServiceHTTPSOnly:              "1",
	})
	require.NoError(t, err)

	assert.Equal(t, "http://kong:8001", cfg.Gateway.URL)
	assert.Equal(t, "kong-v2", cfg.Gateway.Adapter)
	assert.Equal(t, "secret", cfg.Gateway.Token)
	assert.Equal(t, 3*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 2.5, cfg.Gateway.RateLimit)

	assert.Equal(t, "users", cfg.Service.Name)
	assert.Equal(t, "users.internal", cfg.Service.Host)
	assert.Equal(t, 8080, cfg.Service.Port)
	assert.Equal(t, []string{"/users", "/accounts"}, cfg.Service.Paths)
	assert.True(t, *cfg.Service.PreserveHost)
	assert.Equal(t, 3, *cfg.Service.Retries)
	assert.False(t, *cfg.Service.StripURI)
	assert.Equal(t, 1000, *cfg.Service.UpstreamConnectTimeout)
	assert.Equal(t, DefaultUpstreamReadTimeout, *cfg.Service.UpstreamReadTimeout)
	assert.True(t, *cfg.Service.HTTPSOnly)

	assert.Equal(t, SourceEnv, cfg.Sources["service.retries"])
	assert.Equal(t, SourceEnv, cfg.Sources["gateway.url"])
	assert.Equal(t, SourceDefault, cfg.Sources["service.upstreamReadTimeout"])
}

func TestLoadEnv_InvalidValues(t *testing.T) {
	cfg := NewDefault()
	err := LoadEnv(cfg, map[string]string{
		EnvServicePort:      "eighty",
		EnvServiceRetries:   "many",
		EnvServiceHTTPSOnly: "sometimes",
		EnvGatewayTimeout:   "10",
		EnvGatewayRateLimit: "-1",
	})
	require.Error(t, err)
	for _, name := range []string{EnvServicePort, EnvServiceRetries, EnvServiceHTTPSOnly, EnvGatewayTimeout, EnvGatewayRateLimit} {
		assert.Contains(t, err.Error(), name)
	}
	assert.Equal(t, DefaultRetries, *cfg.Service.Retries)
}

func TestLoadEnv_PluginsMergeIntoFilePlugins(t *testing.T) {
	cfg := NewDefault()
	cfg.Plugins = []registry.Plugin{
		registry.NewPlugin("zipkin"),
		registry.NewPlugin("cors").Set("config.origins", "*"),
	}

	err := LoadEnv(cfg, map[string]string{
		"KONGREG_PLUGINS_cors_config_origins": "example.com",
		"KONGREG_PLUGINS_acl_config_allow":    "admins",
	})
	require.NoError(t, err)

	require.Len(t, cfg.Plugins, 3)
	assert.Equal(t, "zipkin", cfg.Plugins[0].Name)
	assert.Equal(t, "cors", cfg.Plugins[1].Name)
	assert.Equal(t, "example.com", cfg.Plugins[1].Properties["config.origins"])
	assert.Equal(t, "acl", cfg.Plugins[2].Name)
	assert.Equal(t, SourceEnv, cfg.Sources["plugins.acl"])
}
