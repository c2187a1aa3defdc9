package logger

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	"homewatch/internal/config"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (debug/info/warning/error) to rotating files and stdout.
type Logger struct {
	log    *logrus.Logger
	logDir string
	mu     sync.Mutex
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(cfg *config.Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{
		log:    newLogrus(os.Stdout),
		logDir: cfg.LogDirectory,
	}
	info := l.rotatingFile(InfoFile)
	l.log.AddHook(newLevelFileHook(map[logrus.Level]io.Writer{
		logrus.DebugLevel: info,
		logrus.InfoLevel:  info,
		logrus.WarnLevel:  l.rotatingFile(WarningFile),
		logrus.ErrorLevel: l.rotatingFile(ErrorFile),
	}))
	return l, nil
}

// NewTestLogger returns a Logger that only writes to w.
func NewTestLogger(w io.Writer) *Logger {
	return &Logger{log: newLogrus(w)}
}

// NewConsoleLogger returns a Logger writing to stdout without level files, for command line tools.
func NewConsoleLogger() *Logger {
	return &Logger{log: newLogrus(os.Stdout)}
}

func newLogrus(out io.Writer) *logrus.Logger {
	lg := logrus.New()
	lg.SetLevel(logrus.DebugLevel)
	lg.SetOutput(out)
	lg.SetFormatter(&formatter.Formatter{
		NoColors:        true,
		HideKeys:        true,
		TimestampFormat: "2006-01-02 15:04:05",
		FieldsOrder:     []string{callerField, "camera"},
	})
	return lg
}

// callerField holds "file.go:line" of the code that called the Logger.
const callerField = "caller"

// entry tags an entry with the file:line skip frames up the stack.
func (l *Logger) entry(skip int) *logrus.Entry {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return logrus.NewEntry(l.log)
	}
	return l.log.WithField(callerField, fmt.Sprintf("%s:%d", path.Base(file), line))
}

func (l *Logger) rotatingFile(name string) io.Writer {
	return &lumberjack.Logger{
		Filename:   filepath.Join(l.logDir, name),
		LocalTime:  true,
		MaxSize:    50,
		MaxAge:     14,
		MaxBackups: 3,
	}
}

// Debug writes a formatted debug-level log entry.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.entry(2).Debugf(format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.entry(2).Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.entry(2).Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.entry(2).Errorf(format, v...)
}

// WithField returns an entry carrying a structured field, for call sites that log per camera.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.entry(2).WithField(key, value)
}

// LogDirectory returns the directory holding the level files, empty for test loggers.
func (l *Logger) LogDirectory() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	filePath := filepath.Join(l.logDir, filepath.Base(fileName))
	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		l.Error("Error opening file %s: %v", fileName, err)
		return err
	}
	defer file.Close()

	l.Info("File %s has been cleared", fileName)
	return nil
}
