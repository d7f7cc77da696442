// Package config loads the kongreg configuration: which gateway to talk to
// and the service definition to register there.
//
// Values are resolved with the following precedence (highest first):
//
//  1. Command-line flags (applied by the caller through Set* helpers)
//  2. Environment variables (KONGREG_*)
//  3. The YAML config file
//  4. Defaults
//
// The config file is located with FindConfigFile: an explicit path, then
// KONGREG_CONFIG, then kongreg.yaml or kongreg.yml in the working
// directory. A file is optional when the environment carries the service
// definition.
//
// Every file is checked against an embedded JSON Schema before it is
// decoded, so errors name the offending path (for example
// "service.port: must be <= 65535").
//
// Plugins can be declared in the file or through the environment:
//
//	KONGREG_PLUGINS_cors_config_retry__timeout=30
//
// declares plugin "cors" with property "config.retry_timeout". See
// NormalizePropertyName for the naming rules.
package config
