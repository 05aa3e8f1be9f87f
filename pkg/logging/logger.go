package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is the minimum severity a Logger writes.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel converts a configured level name. Unknown names map to info.
func ParseLevel(name string) Level {
	switch strings.ToLower(name) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger provides leveled logging for enroll components.
// Lines are written to stdout and to a per-day file in the configured log
// directory, formatted as "[timestamp] [component] [LEVEL] message".
type Logger struct {
	runID     string
	component string
	file      *os.File
	logger    *log.Logger
	mu        sync.Mutex
	logPath   string
	closeOnce sync.Once
}

var (
	// Global run ID for the current process
	runID     string
	runIDOnce sync.Once

	// logDir and project are set by Setup; logDir empty means stdout only
	logDir  string
	project = "enroll"

	minLevel = LevelInfo
	levelMu  sync.RWMutex

	// stdout is swapped by tests
	stdout io.Writer = os.Stdout
)

// getRunID returns or creates the run ID for this process
func getRunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

// Setup configures where component loggers write. It must be called before
// NewLogger for the file output to take effect; otherwise loggers only write
// to stdout.
func Setup(dir, projectName string, level Level) error {
	levelMu.Lock()
	minLevel = level
	levelMu.Unlock()

	if projectName != "" {
		project = projectName
	}
	if dir == "" {
		logDir = ""
		return nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		logDir = ""
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logDir = dir
	return nil
}

// SetLevel changes the minimum level for every logger.
func SetLevel(level Level) {
	levelMu.Lock()
	defer levelMu.Unlock()
	minLevel = level
}

func enabled(level Level) bool {
	levelMu.RLock()
	defer levelMu.RUnlock()
	return level >= minLevel
}

// NewLogger creates a new logger for a specific component.
// The logger writes to stdout and <log_dir>/<project>-<YYYY-MM-DD>.log.
//
// If the log file cannot be opened, it returns a stdout-only logger along
// with the error so callers can report the degraded mode.
func NewLogger(component string) (*Logger, error) {
	if logDir == "" {
		return NewWriterLogger(component, stdout), nil
	}

	logFileName := fmt.Sprintf("%s-%s.log", project, time.Now().Format("2006-01-02"))
	logPath := filepath.Join(logDir, logFileName)

	// Append mode, every component of the process shares the day's file
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return newFallbackLogger(component, fmt.Errorf("failed to open log file: %w", err)), err
	}

	return &Logger{
		runID:     getRunID(),
		component: component,
		file:      file,
		logger:    log.New(io.MultiWriter(stdout, file), "", 0),
		logPath:   logPath,
	}, nil
}

// NewWriterLogger creates a logger that writes only to w.
func NewWriterLogger(component string, w io.Writer) *Logger {
	return &Logger{
		runID:     getRunID(),
		component: component,
		logger:    log.New(w, "", 0),
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWriterLogger("discard", io.Discard)
}

// newFallbackLogger creates a logger that writes to stderr when file logging fails
func newFallbackLogger(component string, err error) *Logger {
	logger := log.New(os.Stderr, fmt.Sprintf("[%s] ", component), log.LstdFlags|log.Lshortfile)
	logger.Printf("WARNING: Failed to initialize file logging: %v", err)
	logger.Printf("Falling back to stderr logging")

	return &Logger{
		runID:     getRunID(),
		component: component,
		logger:    logger,
	}
}

// With returns a logger for a sub-component that shares the same outputs.
func (l *Logger) With(component string) *Logger {
	return &Logger{
		runID:     l.runID,
		component: l.component + "/" + component,
		logger:    l.logger,
		logPath:   l.logPath,
	}
}

// formatLogEntry creates a log entry with timestamp, component, and level
func (l *Logger) formatLogEntry(level, message string) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	return fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, l.component, level, message)
}

func (l *Logger) write(level Level, name, format string, v ...interface{}) {
	if !enabled(level) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	message := fmt.Sprintf(format, v...)
	l.logger.Println(l.formatLogEntry(name, message))
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.write(LevelDebug, "DEBUG", format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.write(LevelInfo, "INFO", format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.write(LevelWarn, "WARN", format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.write(LevelError, "ERROR", format, v...)
}

// RunID returns the process run ID
func (l *Logger) RunID() string {
	return l.runID
}

// LogPath returns the path to the log file, empty when not writing to a file
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}

// GetRunID returns the current global run ID
func GetRunID() string {
	return getRunID()
}
