package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/getmockd/kongreg/pkg/gatewaytest"
	"github.com/getmockd/kongreg/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCommand_CreatesService(t *testing.T) {
	kong := gatewaytest.NewServer(t)
	path := writeConfig(t, kong.URL(), "kong-v2")

	stdout, _, err := executeCommand(t, "register", "--config", path)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Registered service users on "+kong.URL()+" (kong-v2)")
	assert.Contains(t, stdout, "http://users.internal:8080")

	svc, ok := kong.Service("users")
	require.True(t, ok)
	assert.Equal(t, "http://users.internal:8080", svc["url"])

	routes := kong.Routes("users")
	require.Len(t, routes, 1)
	assert.Equal(t, []any{"https"}, routes[0]["protocols"])

	assert.Equal(t, []string{"cors", "key-auth"}, kong.PluginNames("users"))
	cors := kong.Plugins("users")[0]
	assert.Equal(t, map[string]any{"origins": "*"}, cors["config"])
}

func TestRegisterCommand_SendsToken(t *testing.T) {
	kong := gatewaytest.NewServer(t)
	path := writeConfig(t, kong.URL(), "kong-v0")

	_, _, err := executeCommand(t, "register", "--config", path)
	require.NoError(t, err)

	reqs := kong.Requests()
	require.NotEmpty(t, reqs)
	for _, r := range reqs {
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"), "%s %s", r.Method, r.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "kongreg/"), "%s %s", r.Method, r.Path)
	}
}

func TestRegisterCommand_FlagOverrides(t *testing.T) {
	kong := gatewaytest.NewServer(t)
	path := writeConfig(t, "http://unreachable.invalid:8001", "kong-v0")

	_, _, err := executeCommand(t, "register", "--config", path,
		"--gateway-url", kong.URL(), "--adapter", "kong-v2")
	require.NoError(t, err)

	kong.AssertCalled(t, http.MethodPost, "/services")
	kong.AssertNotCalled(t, http.MethodPost, "/apis")
}

func TestRegisterCommand_UpdatesExisting(t *testing.T) {
	kong := gatewaytest.NewServer(t)
	kong.SeedService("users", map[string]any{"upstream_url": "http://old:80", "uris": "/old"})
	kong.SeedPlugin("users", "rate-limiting", nil)
	path := writeConfig(t, kong.URL(), "kong-v0")

	_, _, err := executeCommand(t, "register", "--config", path)
	require.NoError(t, err)

	kong.AssertCallCount(t, http.MethodPatch, "/apis/users", 1)
	kong.AssertNotCalled(t, http.MethodPost, "/apis")

	svc, ok := kong.Service("users")
	require.True(t, ok)
	assert.Equal(t, "http://users.internal:8080", svc["upstream_url"])
	assert.Equal(t, "/users", svc["uris"])
	assert.Equal(t, []string{"cors", "key-auth"}, kong.PluginNames("users"))
}

func TestRegisterCommand_JSONOutput(t *testing.T) {
	kong := gatewaytest.NewServer(t)
	path := writeConfig(t, kong.URL(), "kong-v2")

	stdout, _, err := executeCommand(t, "register", "--config", path, "--json")
	require.NoError(t, err)

	var out RegisterOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, RegisterOutput{
		Status:   "registered",
		Service:  "users",
		Gateway:  kong.URL(),
		Adapter:  "kong-v2",
		Upstream: "http://users.internal:8080",
		Paths:    []string{"/users"},
		Plugins:  []string{"cors", "key-auth"},
	}, out)
}

func TestRegisterCommand_GatewayFailure(t *testing.T) {
	kong := gatewaytest.NewServer(t)
	kong.Fail(http.MethodPost, "/services", http.StatusUnauthorized, `{"message":"Invalid credentials"}`)
	path := writeConfig(t, kong.URL(), "kong-v2")

	_, _, err := executeCommand(t, "register", "--config", path)
	require.Error(t, err)

	var regErr *registry.RegistrationError
	require.True(t, errors.As(err, &regErr))
	assert.Equal(t, "users", regErr.Service)

	var gwErr *registry.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusUnauthorized, gwErr.StatusCode)

	msg := formatError(err)
	assert.Contains(t, msg, "Error: ")
	assert.Contains(t, msg, "Hint: the admin API rejected the request")
}

func TestRegisterCommand_InvalidAdapter(t *testing.T) {
	kong := gatewaytest.NewServer(t)
	path := writeConfig(t, kong.URL(), "kong-v2")

	_, _, err := executeCommand(t, "register", "--config", path, "--adapter", "kong-v9")
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrUnknownShape)
	assert.Empty(t, kong.Requests())
}

func TestRegisterCommand_LogsToFile(t *testing.T) {
	kong := gatewaytest.NewServer(t)
	path := writeConfig(t, kong.URL(), "kong-v2")
	logPath := filepath.Join(t.TempDir(), "kongreg.log")

	_, stderr, err := executeCommand(t, "register", "--config", path,
		"--log-level", "debug", "--log-file", logPath)
	require.NoError(t, err)
	closeLogSink()

	assert.Contains(t, stderr, "service registered")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	line, _, _ := bytes.Cut(data, []byte("\n"))
	var first map[string]any
	require.NoError(t, json.Unmarshal(line, &first))
	assert.Equal(t, "register", first["command"])
	assert.Equal(t, "registering service", first["msg"])
	assert.Contains(t, string(data), `"msg":"gateway request"`)
}

func TestRegisterCommand_Interval(t *testing.T) {
	// A previous run leaves its context on the register command; the
	// interval run must still stop when its own context is cancelled.
	warmup := gatewaytest.NewServer(t)
	_, _, err := executeCommand(t, "register", "--config", writeConfig(t, warmup.URL(), "kong-v2"))
	require.NoError(t, err)

	kong := gatewaytest.NewServer(t)
	path := writeConfig(t, kong.URL(), "kong-v2")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, _, err := executeCommandContext(t, ctx, "register", "--config", path,
			"--interval", "20ms", "--metrics-addr", "127.0.0.1:0")
		done <- err
	}()

	require.Eventually(t, func() bool {
		return kong.Count(http.MethodGet, "/services/users") >= 3
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("register did not stop after cancellation")
	}

	assert.Equal(t, 1, kong.Count(http.MethodPost, "/services"))
	assert.Len(t, kong.Routes("users"), 1)
	assert.Equal(t, []string{"cors", "key-auth"}, kong.PluginNames("users"))
}

func TestFormatError_Hints(t *testing.T) {
	tests := []struct {
		name string
		err  error
		hint string
	}{
		{
			name: "unreachable",
			err:  &registry.GatewayError{Op: "check service", Method: "GET", Path: "/apis/users", Err: errors.New("connection refused")},
			hint: "is the Kong admin API reachable?",
		},
		{
			name: "flat api on new kong",
			err:  &registry.GatewayError{Op: "check service", Method: "GET", Path: "/apis/users", StatusCode: http.StatusNotFound},
			hint: "try --adapter kong-v2",
		},
		{
			name: "services on old kong",
			err:  &registry.GatewayError{Op: "create service", Method: "POST", Path: "/services", StatusCode: http.StatusNotFound},
			hint: "try --adapter kong-v0",
		},
		{
			name: "forbidden",
			err:  &registry.GatewayError{Op: "create service", Method: "POST", Path: "/services", StatusCode: http.StatusForbidden},
			hint: "KONGREG_GATEWAY_TOKEN",
		},
		{
			name: "unknown shape",
			err:  registry.ErrUnknownShape,
			hint: "--adapter kong-v0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := formatError(&registry.RegistrationError{Service: "users", Shape: "kong-v0", Err: tt.err})
			assert.Contains(t, msg, "\nHint: ")
			assert.Contains(t, msg, tt.hint)
		})
	}
}

func TestFormatError_NoHint(t *testing.T) {
	msg := formatError(errors.New("boom"))
	assert.Equal(t, "Error: boom", msg)
}
