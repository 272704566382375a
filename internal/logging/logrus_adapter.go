package logging

import (
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// leadingKeys are printed in this order ahead of the remaining keys by the
// text formatter, so lines of one session and one transaction line up.
var leadingKeys = []string{
	logrus.FieldKeyTime,
	logrus.FieldKeyLevel,
	logrus.FieldKeyMsg,
	FieldSessionID,
	FieldSessionKind,
	FieldIndex,
	FieldChecksum,
	FieldBucket,
}

// LogrusAdapter implements Logger on top of a logrus entry.
type LogrusAdapter struct {
	logger *logrus.Logger
	entry  *logrus.Entry
}

// NewLogrusAdapter returns a Logger writing to stderr. level is one of
// debug, info, warn or error (case-insensitive, unknown values fall back to
// info); format is "json" or "text".
func NewLogrusAdapter(level, format string) Logger {
	return NewLogrusAdapterWithOutput(level, format, os.Stderr)
}

// NewLogrusAdapterWithOutput is NewLogrusAdapter writing to w.
func NewLogrusAdapterWithOutput(level, format string, w io.Writer) Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(newFormatter(format))

	logLevel, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	adapter := FromLogrus(logger)
	if err != nil {
		adapter.Warn("Unknown log level, using info", F("log_level", level))
	}
	return adapter
}

// FromLogrus wraps an existing logrus logger.
func FromLogrus(logger *logrus.Logger) *LogrusAdapter {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogrusAdapter{logger: logger, entry: logrus.NewEntry(logger)}
}

// NewDiscardLogger returns a Logger that drops everything. Components fall
// back to it when constructed without a logger.
func NewDiscardLogger() Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return FromLogrus(logger)
}

func newFormatter(format string) logrus.Formatter {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano}
	}
	return &logrus.TextFormatter{
		FullTimestamp: true,
		SortingFunc:   sortKeys,
	}
}

func sortKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		ri, rj := keyRank(keys[i]), keyRank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
}

func keyRank(key string) int {
	for i, k := range leadingKeys {
		if k == key {
			return i
		}
	}
	return len(leadingKeys)
}

func (l *LogrusAdapter) Debug(msg string, fields ...Field) {
	l.entry.WithFields(convertFields(fields)).Debug(msg)
}

func (l *LogrusAdapter) Info(msg string, fields ...Field) {
	l.entry.WithFields(convertFields(fields)).Info(msg)
}

func (l *LogrusAdapter) Warn(msg string, fields ...Field) {
	l.entry.WithFields(convertFields(fields)).Warn(msg)
}

func (l *LogrusAdapter) Error(msg string, fields ...Field) {
	l.entry.WithFields(convertFields(fields)).Error(msg)
}

func (l *LogrusAdapter) WithError(err error) Logger {
	return l.with(l.entry.WithError(err))
}

func (l *LogrusAdapter) WithField(key string, value interface{}) Logger {
	return l.with(l.entry.WithFields(convertFields([]Field{F(key, value)})))
}

func (l *LogrusAdapter) WithFields(fields ...Field) Logger {
	return l.with(l.entry.WithFields(convertFields(fields)))
}

func (l *LogrusAdapter) with(entry *logrus.Entry) *LogrusAdapter {
	return &LogrusAdapter{logger: l.logger, entry: entry}
}

// convertFields maps fields to logrus fields. Empty keys are dropped,
// durations become whole milliseconds (FieldDuration is in ms) and errors
// are rendered to their message so the JSON formatter keeps them.
func convertFields(fields []Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		if f.Key == "" {
			continue
		}
		switch v := f.Value.(type) {
		case time.Duration:
			out[f.Key] = v.Milliseconds()
		case error:
			out[f.Key] = v.Error()
		default:
			out[f.Key] = v
		}
	}
	return out
}
