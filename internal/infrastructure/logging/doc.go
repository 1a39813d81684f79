// Package logging provides structured logging for Gray Twin Core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the repository service.
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
//	logger.Info("submodel created", "submodel_id", id)
//	logger.Error("publishing event failed", "error", err)
//
// The API stores a request-scoped child logger in each request context
// with NewContext; handlers retrieve it with FromContext.
//
// Never log S3 secret keys, database DSNs or MQTT passwords.
package logging
