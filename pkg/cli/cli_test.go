package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/getmockd/kongreg/pkg/config"
	"github.com/getmockd/kongreg/pkg/logging"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag variable and command context, since the
// command tree is global. Cobra only hands the root context to subcommands
// whose own context is nil.
func resetFlags() {
	for _, c := range rootCmd.Commands() {
		c.SetContext(nil)
	}

	configPath = ""
	jsonOutput = false
	logLevel = ""
	logFormat = ""
	logFile = ""

	validateOutput = "text"
	validateGatewayURL = ""
	validateAdapter = ""

	registerGatewayURL = ""
	registerAdapter = ""
	registerInterval = 0
	registerMetricsAddr = ""

	logger = logging.Nop()
}

// executeCommand runs the root command with args and returns what it wrote
// to stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeCommandContext(t, context.Background(), args...)
}

func executeCommandContext(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(closeLogSink)
	for _, name := range []string{
		config.EnvConfig, config.EnvGatewayURL, config.EnvGatewayAdapter, config.EnvGatewayToken,
		config.EnvServiceName, logging.EnvLevel, logging.EnvFormat,
	} {
		t.Setenv(name, "")
	}

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// writeConfig writes a kongreg.yaml pointing at gatewayURL into a temp dir.
func writeConfig(t *testing.T, gatewayURL, adapter string) string {
	t.Helper()
	content := strings.NewReplacer("{{url}}", gatewayURL, "{{adapter}}", adapter).Replace(`
gateway:
  url: {{url}}
  adapter: {{adapter}}
  token: s3cret
  timeout: 2s
service:
  name: users
  host: users.internal
  port: 8080
  paths:
    - /users
  httpsOnly: true
plugins:
  - name: cors
    properties:
      config.origins: "*"
      owner: platform
  - name: key-auth
`)
	path := filepath.Join(t.TempDir(), "kongreg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
