package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// DefaultFile is the ecosystem log file, appended to alongside console output.
	DefaultFile = "aete.log"

	componentKey = "component"
	rootName     = "aete"
	timeLayout   = "2006-01-02 15:04:05,000"
)

type Options struct {
	Level      logrus.Level
	File       string // empty disables the file sink
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Console    io.Writer // defaults to os.Stdout
}

var (
	once     sync.Once
	setupErr error
	logger   = logrus.New()
)

// Setup configures the process logger. Only the first call has any effect;
// later calls return the same logger and the first call's error.
func Setup(opts Options) (*logrus.Logger, error) {
	once.Do(func() {
		setupErr = configure(logger, opts)
		if setupErr == nil {
			For(rootName).Info("AETE logging initialized")
		}
	})
	return logger, setupErr
}

func configure(l *logrus.Logger, opts Options) error {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	writers := []io.Writer{console}

	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create log dir: %w", err)
			}
		}
		// lumberjack opens in append mode and only rotates past MaxSize.
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    valOr(opts.MaxSizeMB, 100),
			MaxBackups: valOr(opts.MaxBackups, 3),
			MaxAge:     valOr(opts.MaxAgeDays, 7),
		})
	}

	l.SetOutput(io.MultiWriter(writers...))
	l.SetLevel(opts.Level)
	l.SetFormatter(&LineFormatter{})
	return nil
}

// For returns a logger scoped to a component name.
func For(component string) *logrus.Entry {
	return logger.WithField(componentKey, component)
}

// ParseLevel accepts the usual level names, including WARNING and CRITICAL.
func ParseLevel(s string) (logrus.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WARNING":
		return logrus.WarnLevel, nil
	case "CRITICAL":
		return logrus.FatalLevel, nil
	}
	return logrus.ParseLevel(s)
}

// LineFormatter writes "timestamp - component - LEVEL - message" lines,
// followed by any remaining fields as key=value.
type LineFormatter struct{}

func (f *LineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer

	component := rootName
	if c, ok := e.Data[componentKey].(string); ok && c != "" {
		component = c
	}

	fmt.Fprintf(&b, "%s - %s - %s - %s",
		e.Time.Format(timeLayout), component, strings.ToUpper(e.Level.String()), e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		if k != componentKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func valOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
