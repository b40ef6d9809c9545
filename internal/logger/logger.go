// Package logger writes to the standard logger and, when a token is
// configured, forwards the same entries to Rollbar.
package logger

import (
	"io"
	"log"
	"os"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
)

// Logger is safe for concurrent use.
type Logger struct {
	std     *log.Logger
	rollbar bool
}

// Options configures Rollbar reporting. An empty Token disables it.
type Options struct {
	Token       string
	Environment string
	CodeVersion string
}

// New builds a logger writing to w (stderr when nil).
func New(w io.Writer, opts Options) *Logger {
	if w == nil {
		w = os.Stderr
	}
	l := &Logger{std: log.New(w, "", log.LstdFlags)}
	if opts.Token != "" {
		rollbar.SetToken(opts.Token)
		rollbar.SetEnvironment(opts.Environment)
		rollbar.SetCodeVersion(opts.CodeVersion)
		if host, err := os.Hostname(); err == nil {
			rollbar.SetServerHost(host)
		}
		rollbar.SetStackTracer(errors.StackTracer)
		rollbar.SetEnabled(true)
		l.rollbar = true
	}
	return l
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return New(io.Discard, Options{})
}

// Std exposes the underlying *log.Logger for libraries that want one.
func (l *Logger) Std() *log.Logger { return l.std }

// Fields are extra key/values attached to an entry.
type Fields map[string]interface{}

func (l *Logger) print(level, msg string, err error, fields Fields) {
	switch {
	case err != nil && len(fields) > 0:
		l.std.Printf("%s %s: %v %v", level, msg, err, map[string]interface{}(fields))
	case err != nil:
		l.std.Printf("%s %s: %v", level, msg, err)
	case len(fields) > 0:
		l.std.Printf("%s %s %v", level, msg, map[string]interface{}(fields))
	default:
		l.std.Printf("%s %s", level, msg)
	}
}

func (l *Logger) report(level, msg string, err error, fields Fields) {
	if !l.rollbar {
		return
	}
	args := []interface{}{msg}
	if err != nil {
		args = []interface{}{err}
	}
	if len(fields) > 0 {
		args = append(args, map[string]interface{}(fields))
	}
	switch level {
	case rollbar.INFO:
		rollbar.Info(args...)
	case rollbar.WARN:
		rollbar.Warning(args...)
	default:
		rollbar.Error(args...)
	}
}

func (l *Logger) Info(msg string, fields ...Fields) {
	l.print("INFO", msg, nil, merge(fields))
}

func (l *Logger) Warn(msg string, err error, fields ...Fields) {
	f := merge(fields)
	l.print("WARN", msg, err, f)
	l.report(rollbar.WARN, msg, err, f)
}

// Error logs and reports err. msg describes what was being attempted.
func (l *Logger) Error(msg string, err error, fields ...Fields) {
	f := merge(fields)
	l.print("ERROR", msg, err, f)
	l.report(rollbar.ERR, msg, err, f)
}

// Fatal logs, flushes pending reports and exits.
func (l *Logger) Fatal(msg string, err error) {
	l.print("FATAL", msg, err, nil)
	if l.rollbar {
		rollbar.Critical(err)
		rollbar.Wait()
	}
	os.Exit(1)
}

// Close flushes queued Rollbar items.
func (l *Logger) Close() {
	if l.rollbar {
		rollbar.Close()
	}
}

func merge(fields []Fields) Fields {
	switch len(fields) {
	case 0:
		return nil
	case 1:
		return fields[0]
	}
	out := Fields{}
	for _, f := range fields {
		for k, v := range f {
			out[k] = v
		}
	}
	return out
}
