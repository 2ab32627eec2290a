package logger

import (
	"fmt"

	"github.com/sirupsen/logrus"
	tlog "go.temporal.io/sdk/log"
)

// TemporalAdapter lets the Temporal client and worker log through logrus.
type TemporalAdapter struct {
	entry *logrus.Entry
}

var (
	_ tlog.Logger     = (*TemporalAdapter)(nil)
	_ tlog.WithLogger = (*TemporalAdapter)(nil)
)

// NewTemporalAdapter wraps log.
func NewTemporalAdapter(log logrus.FieldLogger) *TemporalAdapter {
	return &TemporalAdapter{entry: log.WithField("component", "temporal")}
}

func (a *TemporalAdapter) Debug(msg string, keyvals ...interface{}) {
	a.entry.WithFields(fields(keyvals)).Debug(msg)
}

func (a *TemporalAdapter) Info(msg string, keyvals ...interface{}) {
	a.entry.WithFields(fields(keyvals)).Info(msg)
}

func (a *TemporalAdapter) Warn(msg string, keyvals ...interface{}) {
	a.entry.WithFields(fields(keyvals)).Warn(msg)
}

func (a *TemporalAdapter) Error(msg string, keyvals ...interface{}) {
	a.entry.WithFields(fields(keyvals)).Error(msg)
}

// With returns a logger that always carries keyvals.
func (a *TemporalAdapter) With(keyvals ...interface{}) tlog.Logger {
	return &TemporalAdapter{entry: a.entry.WithFields(fields(keyvals))}
}

// fields turns alternating key/value pairs into logrus fields. A trailing
// key without a value is kept under "extra".
func fields(keyvals []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 >= len(keyvals) {
			f["extra"] = keyvals[i]
			break
		}
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		f[key] = keyvals[i+1]
	}
	return f
}
