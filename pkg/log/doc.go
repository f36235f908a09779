// Package log is the structured logging layer shared by every signet package.
//
// Loggers are passed explicitly or carried in a context.Context; there is no
// package-level logger. A component that receives a context should log through
// FromContext so that its records pick up the caller's name, key-value pairs
// and, when a trace span is active, the span's trace and span ids:
//
//	lg := log.NewZapLogger(log.Config{Format: "logfmt", Level: log.LevelDebug})
//	ctx = log.SetContextLogger(ctx, lg.WithName("controller"))
//	log.FromContext(ctx).Info("wallet connected", "account", account)
//
// Implementations:
//
//   - ZapLogger writes console, logfmt or json records through zap.
//   - NoopLogger discards everything and is returned when a context has no logger.
//   - SpanLogger mirrors each record into an OpenTelemetry span as an event.
package log
