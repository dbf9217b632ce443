// Package logging provides structured logging for the device catalog.
//
// It wraps log/slog so every component logs the same way:
//
//   - JSON output for production, text for development
//   - service and version attributes on every entry
//   - per-component child loggers via Component
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("update").Info("cycle complete", "devices", 412)
//
// Never log secrets such as broker passwords or InfluxDB tokens.
package logging
