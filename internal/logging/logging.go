package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger writes JSON records to stdout and a rotating file.
type Logger struct {
	*logrus.Entry
	file *lumberjack.Logger
}

// New creates a Logger that writes to dir/service.log and to stdout.
func New(dir, level string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir %s: %w", dir, err)
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "service.log"),
		MaxSize:    50, // megabytes
		MaxBackups: 7,
		MaxAge:     14, // days
		Compress:   true,
	}

	base := logrus.New()
	base.SetLevel(lvl)
	base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	base.SetOutput(io.MultiWriter(os.Stdout, file))

	return &Logger{Entry: logrus.NewEntry(base), file: file}, nil
}

// NewNop returns a Logger that discards everything. Used in tests.
func NewNop() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{Entry: logrus.NewEntry(base)}
}

// With returns a child Logger carrying the given fields on every record.
func (l *Logger) With(fields logrus.Fields) *Logger {
	return &Logger{Entry: l.Entry.WithFields(fields), file: l.file}
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
