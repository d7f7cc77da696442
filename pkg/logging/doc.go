// Package logging builds the structured loggers used across kongreg.
//
// It wraps log/slog so the CLI, the registrar and the gateway client all
// emit the same shape of records:
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatJSON,
//	})
//
//	logger.Info("service registered", "service", "users", "shape", "kong-v2")
//
// Components accept a *slog.Logger through an option and fall back to
// Nop() when none is given.
package logging
