// internal/logger/logger.go
// Ambient structured logging (spec §10). Adapted from the teacher's
// top-level logger package: a logrus.Logger wrapper with a component
// field convention, JSON/text formatting, and optional file rotation
// via lumberjack. The teacher's package-level init() singleton is
// replaced by an explicit Init(), guarded by sync.Once, matching the
// "one-shot initializer, repeat calls are no-ops" shape used elsewhere
// in this module (see registry.New, store.New being explicit
// constructors rather than ambient state).
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Fields has the same shape as logrus.Fields (a distinct named type,
// converted at each call) to keep call sites decoupled from the logging
// backend.
type Fields map[string]interface{}

// Log wraps logrus.Logger.
type Log struct {
	*logrus.Logger
}

// Entry wraps logrus.Entry so WithXxx calls chain through our types.
type Entry struct {
	*logrus.Entry
}

var (
	globalOnce   sync.Once
	globalLogger *Log

	warnCount  int64
	errorCount int64
)

// Logger builds a new logrus-backed Log with the module's default
// JSON formatter, caller attribution, and level taken from LOG_LEVEL.
func Logger() *Log {
	l := logrus.New()
	l.SetReportCaller(true)

	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if levelStr == "" {
		levelStr = "info"
	}
	if lvl, err := logrus.ParseLevel(levelStr); err == nil {
		l.SetLevel(lvl)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}

	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat:  time.RFC3339Nano,
		CallerPrettyfier: callerPrettyfier,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	l.AddHook(&callerHook{})
	return &Log{Logger: l}
}

// Init constructs the process-wide Log exactly once; later calls are
// no-ops and return the logger built on the first call.
func Init() *Log {
	globalOnce.Do(func() {
		globalLogger = Logger()
	})
	return globalLogger
}

// Global returns the process-wide logger, building a default one if
// Init was never called.
func Global() *Log {
	return Init()
}

func callerPrettyfier(f *runtime.Frame) (string, string) {
	return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
}

func (l *Log) WithComponent(component string) *Entry {
	return &Entry{Entry: l.Logger.WithField("component", component)}
}

func (l *Log) WithFields(fields Fields) *Entry {
	return &Entry{Entry: l.Logger.WithFields(logrus.Fields(fields))}
}

func (l *Log) WithError(err error) *Entry {
	return &Entry{Entry: l.Logger.WithError(err)}
}

// WithEnv attaches the current values of the named environment
// variables to the entry, useful for tagging logs with deployment
// identity (region, shard, APP_ENV) without threading config through
// every call site.
func (l *Log) WithEnv(envs ...string) *Entry {
	fields := logrus.Fields{}
	for _, env := range envs {
		fields[env] = os.Getenv(env)
	}
	return &Entry{Entry: l.Logger.WithFields(fields)}
}

func (e *Entry) WithComponent(component string) *Entry {
	return &Entry{Entry: e.Entry.WithField("component", component)}
}

func (e *Entry) WithFields(fields Fields) *Entry {
	return &Entry{Entry: e.Entry.WithFields(logrus.Fields(fields))}
}

func (e *Entry) WithError(err error) *Entry {
	return &Entry{Entry: e.Entry.WithError(err)}
}

func (e *Entry) WithEnv(envs ...string) *Entry {
	fields := logrus.Fields{}
	for _, env := range envs {
		fields[env] = os.Getenv(env)
	}
	return &Entry{Entry: e.Entry.WithFields(fields)}
}

func (e *Entry) Info(args ...interface{})  { e.Entry.Info(args...) }
func (e *Entry) Debug(args ...interface{}) { e.Entry.Debug(args...) }

func (e *Entry) Warn(args ...interface{}) {
	atomic.AddInt64(&warnCount, 1)
	e.Entry.Warn(args...)
}

func (e *Entry) Error(args ...interface{}) {
	atomic.AddInt64(&errorCount, 1)
	e.Entry.Error(args...)
}

// Counts returns the number of Warn/Error calls made through any
// Entry since process start, for surfacing on a health or diagnostics
// endpoint.
func Counts() (warns, errors int64) {
	return atomic.LoadInt64(&warnCount), atomic.LoadInt64(&errorCount)
}

// Configure applies runtime configuration (spec §10): level, text/json
// format, and output target. Output "stdout"/"stderr" write there
// directly; anything else is treated as a file path, rotated through
// lumberjack when maxAge > 0.
func (l *Log) Configure(level, format, output string, maxAge int) error {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	l.SetLevel(lvl)
	l.SetReportCaller(true)

	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:  time.RFC3339Nano,
			CallerPrettyfier: callerPrettyfier,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	case "text":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: callerPrettyfier,
		})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}

	switch output {
	case "stdout", "":
		l.SetOutput(os.Stdout)
	case "stderr":
		l.SetOutput(os.Stderr)
	default:
		if maxAge > 0 {
			l.SetOutput(&lumberjack.Logger{
				Filename: output,
				MaxAge:   maxAge,
				MaxSize:  100,
				Compress: true,
			})
		} else {
			f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
			if err != nil {
				return fmt.Errorf("failed to open log file %q: %w", output, err)
			}
			l.SetOutput(f)
		}
	}
	return nil
}

func (l *Log) SetOutput(output io.Writer)         { l.Logger.SetOutput(output) }
func (l *Log) SetLevel(level logrus.Level)        { l.Logger.SetLevel(level) }
func (l *Log) SetFormatter(f logrus.Formatter)     { l.Logger.SetFormatter(f) }
