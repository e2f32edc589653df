// Package logger wraps logrus with the fields fleetwatchd's subsystems use.
package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Logger so callers depend on this package, not logrus
// directly.
type Logger struct {
	*logrus.Logger
}

// Config controls level, format and output destination.
type Config struct {
	Level  string
	Format string
	Output string
}

// New builds a Logger from Config, defaulting to info/text/stdout.
func New(cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if strings.ToLower(cfg.Output) == "stderr" {
		l.SetOutput(os.Stderr)
	} else {
		l.SetOutput(os.Stdout)
	}

	return &Logger{Logger: l}
}

// NewDefault returns an info-level, text-formatted, stdout logger. Callers
// typically chain .With("component", name) on the returned entry.
func NewDefault(component string) *Logger {
	l := New(Config{Level: "info", Format: "text", Output: "stdout"})
	l.Logger.AddHook(&componentHook{component: component})
	return l
}

type componentHook struct{ component string }

func (h *componentHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *componentHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["component"]; !ok {
		e.Data["component"] = h.component
	}
	return nil
}

// With returns an entry scoped to a single field, mirroring the rest of the
// subsystems' habit of tagging log lines with device_id/rule_id/cycle.
func (l *Logger) With(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}
