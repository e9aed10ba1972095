// Package logging provides structured logging for the Gray Logic assistant link.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Security
//
// Never log bearer tokens, authorization codes, client secrets or passwords.
// Use Redact for anything that needs to be correlated:
//
//	logger.Info("access token issued", "token", logging.Redact(tok))
package logging
