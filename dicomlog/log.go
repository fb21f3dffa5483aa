package dicomlog

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// level sets log verbosity. The larger the value, the more verbose.  Setting it
// to -1 disables logging completely.
var level = int32(0)

// SetLevel sets log verbosity. The larger the value, the more verbose. Setting
// it to -1 disables logging completely. Thread safe.
func SetLevel(l int) {
	atomic.StoreInt32(&level, int32(l))
}

// Level returns the current log level. The larger the value, the more verbose.
// Thread safe.
func Level() int {
	return int(atomic.LoadInt32(&level))
}

// Vprintf is shorthand for "if level > Level { log.Printf(...) }".
func Vprintf(l int, format string, args ...interface{}) {
	if Level() >= l {
		logrus.Printf(format, args...)
	}
}

// Logger is a logrus entry gated by the package verbosity.
type Logger struct {
	entry *logrus.Entry
}

// WithSession returns a logger whose lines carry the given parse session id.
func WithSession(id string) *Logger {
	return &Logger{entry: logrus.WithField("session", id)}
}

// WithEntry wraps an existing logrus entry.
func WithEntry(e *logrus.Entry) *Logger {
	return &Logger{entry: e}
}

// Vprintf logs at info level when the package verbosity is at least l.
func (lg *Logger) Vprintf(l int, format string, args ...interface{}) {
	if Level() >= l {
		lg.entry.Infof(format, args...)
	}
}

// Warnf always logs unless logging is disabled.
func (lg *Logger) Warnf(format string, args ...interface{}) {
	if Level() >= 0 {
		lg.entry.Warnf(format, args...)
	}
}

// Entry exposes the underlying logrus entry.
func (lg *Logger) Entry() *logrus.Entry {
	return lg.entry
}
