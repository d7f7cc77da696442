// Package cli provides the command-line interface for kongreg.
//
// The cli package implements the commands that register a service on a Kong
// API gateway:
//   - register: Register the configured service once, or re-announce it on
//     an interval until interrupted
//   - validate: Load and validate the configuration and print the resolved
//     service definition without contacting the gateway
//   - version: Show kongreg version
//
// Configuration is read from a YAML file (--config, $KONGREG_CONFIG or
// ./kongreg.yaml) and KONGREG_* environment variables. Flags override both.
//
// Global flags:
//   - --config: Path to the configuration file
//   - --json: Output command results in JSON format
//   - --log-level: debug, info, warn or error
//   - --log-format: text or json
//   - --log-file: Also write JSON logs to a file
package cli
