package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/getmockd/kongreg/pkg/config"
	"github.com/getmockd/kongreg/pkg/logging"
	"github.com/spf13/cobra"
)

var (
	// Persistent flags available to all subcommands
	configPath string
	jsonOutput bool
	logLevel   string
	logFormat  string
	logFile    string

	// logger is configured by the root command before any subcommand runs.
	logger  = logging.Nop()
	logSink io.Closer

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kongreg",
	Short: "kongreg registers a service and its plugins on a Kong API gateway",
	Long: `kongreg creates or updates a service on a Kong admin API, keeps its first
route in sync, and replaces the plugins attached to it.

Both the flat /apis admin API of Kong 0.x (adapter kong-v0) and the
services and routes API of Kong 1.x and later (adapter kong-v2) are supported.

Configuration can be provided via flags, environment variables, or a configuration file.
By default, kongreg looks for kongreg.yaml in the working directory.`,
	SilenceUsage:      true,
	SilenceErrors:     true, // We handle errors in Execute()
	PersistentPreRunE: setupLogging,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	closeLogSink()
	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to config file (default: $KONGREG_CONFIG or ./kongreg.yaml)")
	pf.BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $KONGREG_LOG_LEVEL or info)")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text, json (default: $KONGREG_LOG_FORMAT or text)")
	pf.StringVar(&logFile, "log-file", "", "Also write JSON logs to this file")
}

// setupLogging builds the command logger. Flags win over KONGREG_LOG_*.
func setupLogging(cmd *cobra.Command, _ []string) error {
	cfg := logging.FromEnv(os.Getenv)
	cfg.Output = cmd.ErrOrStderr()
	if logLevel != "" {
		cfg.Level = logging.ParseLevel(logLevel)
	}
	if logFormat != "" {
		cfg.Format = logging.ParseFormat(logFormat)
	}

	closeLogSink()
	if logFile == "" {
		logger = logging.New(cfg)
		return nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logSink = f
	logger = logging.Tee(cfg, f)
	return nil
}

func closeLogSink() {
	if logSink != nil {
		_ = logSink.Close()
		logSink = nil
	}
}

// commandLogger returns the logger tagged with the running command.
func commandLogger(cmd *cobra.Command) *slog.Logger {
	return logger.With("command", cmd.Name())
}

// loadConfig loads the configuration named by --config, the environment and
// the working directory.
func loadConfig() (*config.Config, error) {
	return config.Load(config.Options{Path: configPath})
}
