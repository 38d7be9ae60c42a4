// Package logger provides the structured logger shared by every service.
// It is a thin layer over logrus so call sites keep the familiar
// WithField/WithError chaining.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggingConfig mirrors the logging section of the application config.
type LoggingConfig struct {
	Level      string
	Format     string
	Output     string
	FilePrefix string
}

// Logger wraps a logrus logger and carries a component name.
type Logger struct {
	*logrus.Logger
	name string
}

// New builds a logger from configuration. Unknown levels fall back to info,
// unknown formats to text, and an unusable file output to stdout.
func New(cfg LoggingConfig) *Logger {
	base := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}

	base.SetOutput(resolveOutput(cfg))
	return &Logger{Logger: base, name: "app"}
}

// NewDefault returns an info-level text logger tagged with the component name.
func NewDefault(name string) *Logger {
	base := logrus.New()
	base.SetLevel(logrus.InfoLevel)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	base.SetOutput(os.Stdout)
	return &Logger{Logger: base, name: name}
}

// Named returns a logger sharing the same sink but tagged with another
// component name.
func (l *Logger) Named(name string) *Logger {
	if l == nil {
		return NewDefault(name)
	}
	return &Logger{Logger: l.Logger, name: name}
}

// Name reports the component name attached to the logger.
func (l *Logger) Name() string {
	return l.name
}

// WithField adds a single field and the component tag.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField("component", l.name).WithField(key, value)
}

// WithFields adds several fields and the component tag.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.Logger.WithField("component", l.name).WithFields(fields)
}

// WithError attaches an error and the component tag.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithField("component", l.name).WithError(err)
}

func resolveOutput(cfg LoggingConfig) io.Writer {
	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	case "file":
		prefix := strings.TrimSpace(cfg.FilePrefix)
		if prefix == "" {
			prefix = "app"
		}
		path := filepath.Clean(fmt.Sprintf("%s-%s.log", prefix, time.Now().UTC().Format("20060102")))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return os.Stdout
		}
		return f
	default:
		return os.Stdout
	}
}
