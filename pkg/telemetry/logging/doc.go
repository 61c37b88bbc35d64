// Package logging configures structured logging on top of log/slog.
//
// # Usage
//
//	logger, err := logging.Setup(cfg.Telemetry.Logging, os.Stderr)
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "batch accepted") // includes request_id
//
// Setup installs the logger as the slog default. Components derive their own
// loggers from it with slog.Default().With("component", ...).
//
// Log calls made with a context that carries an OpenTelemetry span also
// receive trace_id and span_id attributes.
package logging
