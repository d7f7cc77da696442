package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/kongreg/pkg/registry"
)

func validConfig() *Config {
	cfg := NewDefault()
	cfg.Gateway.URL = "http://kong:8001"
	cfg.Service.Name = "users"
	cfg.Service.Host = "users.internal"
	cfg.Service.Port = 8080
	cfg.Service.Paths = []string{"/users"}
	return cfg
}

func TestConfig_ServiceInfoDefaults(t *testing.T) {
	svc, err := validConfig().ServiceInfo()
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		registry.PropPreserveHost:           false,
		registry.PropRetries:                5,
		registry.PropStripURI:               true,
		registry.PropUpstreamConnectTimeout: 60000,
		registry.PropUpstreamReadTimeout:    60000,
		registry.PropUpstreamSendTimeout:    60000,
		registry.PropHTTPSOnly:              false,
		registry.PropHTTPIfTerminated:       false,
	}, svc.Properties())
}

func TestConfig_ServiceInfoTypedFieldsWin(t *testing.T) {
	cfg := validConfig()
	cfg.Service.Properties = map[string]any{"retries": 99, "tags": "edge"}
	cfg.Service.Retries = ptr(1)
	cfg.Plugins = []registry.Plugin{registry.NewPlugin("cors")}

	svc, err := cfg.ServiceInfo()
	require.NoError(t, err)

	v, _ := svc.Property(registry.PropRetries)
	assert.Equal(t, 1, v)
	v, _ = svc.Property("tags")
	assert.Equal(t, "edge", v)
	assert.Len(t, svc.Plugins(), 1)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Gateway.URL = ""
	cfg.Gateway.Adapter = "nginx"
	cfg.Service.Port = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway.url")
	assert.Contains(t, err.Error(), "gateway.adapter")
	assert.True(t, registry.IsValidation(err))

	cfg = validConfig()
	cfg.Gateway.URL = "kong:8001"
	assert.ErrorContains(t, cfg.Validate(), "absolute http(s) URL")
}

func TestConfig_Resolve(t *testing.T) {
	cfg := validConfig()
	cfg.Gateway.Token = "secret"
	cfg.SetAdapter("service-route")
	cfg.SetGatewayURL("https://kong:8444")

	r, err := cfg.Resolve()
	require.NoError(t, err)

	assert.Equal(t, "https://kong:8444", r.Gateway.URL)
	assert.Equal(t, registry.ShapeKongV2, r.Gateway.Adapter)
	assert.Equal(t, (10 * time.Second).String(), r.Gateway.Timeout)
	assert.True(t, r.Gateway.Authenticated)
	assert.Equal(t, "users", r.Service.Name)
	assert.Equal(t, SourceFlag, r.Sources["gateway.url"])
}

func TestConfig_ClientOptions(t *testing.T) {
	cfg := validConfig()
	assert.Len(t, cfg.ClientOptions(), 1)

	cfg.Gateway.Token = "t"
	cfg.Gateway.RateLimit = 5
	assert.Len(t, cfg.ClientOptions(), 3)
}
