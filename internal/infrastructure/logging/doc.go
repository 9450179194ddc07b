// Package logging configures structured logging for shellyd on top of
// log/slog.
//
// Every entry carries service and version attributes. Format (json or
// text), level, and destination come from config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Components derive child loggers with With:
//
//	monLogger := logger.With("component", "monitor")
//	monLogger.Info("poll complete", "devices", n)
//
// Never log credentials, tokens, or password hashes.
package logging
