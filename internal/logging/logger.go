// Package logging is the logger shared by the import pipeline. Components
// take a Logger in their constructor; LogrusAdapter backs it in the CLI and
// MockLogger records entries in tests.
package logging

// Logger is the structured logger every component receives.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithError attaches err under the "error" key.
	WithError(err error) Logger

	WithField(key string, value interface{}) Logger

	// WithFields returns a child logger carrying fields on every entry, used
	// to bind a session id and kind for the lifetime of a worker.
	WithFields(fields ...Field) Logger
}

// Field is one key-value pair of a log entry. Keys should come from the
// Field* constants.
type Field struct {
	Key   string
	Value interface{}
}

// F builds a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}
