package log

// Logger is the structured logger used across signet.
// Every log method takes a message followed by alternating keys and values.
type Logger interface {
	// Debug logs detail that is only useful while developing or diagnosing.
	Debug(msg string, keysAndValues ...any)
	// Info logs routine progress such as a wallet connecting.
	Info(msg string, keysAndValues ...any)
	// Warn logs an unexpected situation the caller recovered from.
	Warn(msg string, keysAndValues ...any)
	// Error logs a failed operation.
	Error(msg string, keysAndValues ...any)
	// Fatal logs an unrecoverable failure. Implementations may exit the process.
	Fatal(msg string, keysAndValues ...any)
	// WithKV returns a logger that attaches key and value to every record.
	WithKV(key string, value any) Logger
	// GetAllKV returns the key-value pairs attached with WithKV.
	GetAllKV() []any
	// WithName returns a logger whose name is extended with name.
	WithName(name string) Logger
	// Name returns the dotted logger name.
	Name() string
	// AddCallerSkip returns a logger that skips skip additional frames when
	// reporting the caller. Implementations without caller info return themselves.
	AddCallerSkip(skip int) Logger
}

// Level is a log severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// SpanEventRecorder records log records onto a tracing span.
type SpanEventRecorder interface {
	TraceID() string
	SpanID() string

	// RecordEvent adds an event named name with keysAndValues as attributes.
	RecordEvent(name string, keysAndValues ...any)
	// RecordError adds an event and marks the span as failed.
	RecordError(name string, keysAndValues ...any)
}
