package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level represents a logging level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	PROGRESS // Special level that always displays
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case PROGRESS:
		return "PROGRESS"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name to a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("invalid log level: %s (must be one of debug, info, warn, error)", s)
	}
}

// Format represents the log output format
type Format int

const (
	Text Format = iota
	JSON
)

// ParseFormat converts a format name to a Format
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return Text, nil
	case "json":
		return JSON, nil
	default:
		return Text, fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", s)
	}
}

// Logger handles structured logging
type Logger struct {
	out    io.Writer
	level  Level
	format Format
	mu     sync.Mutex
}

// LogConfig contains logger configuration
type LogConfig struct {
	Level  Level
	Format Format
	// Output defaults to os.Stdout when nil
	Output io.Writer
}

var (
	defaultLogger = New(LogConfig{Level: INFO, Format: Text})

	// Color definitions
	debugColor    = color.New(color.FgCyan)
	infoColor     = color.New(color.FgGreen)
	warnColor     = color.New(color.FgYellow)
	errorColor    = color.New(color.FgRed)
	progressColor = color.New(color.FgBlue, color.Bold)
)

// New creates a logger
func New(config LogConfig) *Logger {
	l := &Logger{}
	l.Configure(config)
	return l
}

// Configure replaces the logger settings
func (l *Logger) Configure(config LogConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = config.Level
	l.format = config.Format
	l.out = config.Output
	if l.out == nil {
		l.out = os.Stdout
	}
}

// Configure sets up the default logger
func Configure(config LogConfig) {
	defaultLogger.Configure(config)
}

// Default returns the package logger
func Default() *Logger {
	return defaultLogger
}

type logEntry struct {
	Timestamp string      `json:"timestamp"`
	Level     string      `json:"level"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
}

func (l *Logger) log(level Level, msg string, data interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Always show PROGRESS level, otherwise respect level setting
	if level != PROGRESS && level < l.level {
		return
	}

	timestamp := time.Now().Format("2006/01/02 15:04:05")

	if l.format == JSON {
		entry := logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Message:   msg,
			Data:      data,
		}
		if err := json.NewEncoder(l.out).Encode(entry); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode log entry: %v\n", err)
		}
		return
	}

	// Text format
	var levelColor *color.Color
	switch level {
	case DEBUG:
		levelColor = debugColor
	case INFO:
		levelColor = infoColor
	case WARN:
		levelColor = warnColor
	case ERROR:
		levelColor = errorColor
	case PROGRESS:
		levelColor = progressColor
	default:
		levelColor = infoColor
	}

	levelStr := levelColor.Sprintf("%-5s", level.String())
	fmt.Fprintf(l.out, "%s %s: %s", timestamp, levelStr, msg)
	if data != nil {
		fmt.Fprintf(l.out, " %+v", data)
	}
	fmt.Fprintln(l.out)
}

func (l *Logger) Debug(msg string, data ...interface{}) {
	l.log(DEBUG, msg, firstOrNil(data))
}

func (l *Logger) Info(msg string, data ...interface{}) {
	l.log(INFO, msg, firstOrNil(data))
}

func (l *Logger) Warn(msg string, data ...interface{}) {
	l.log(WARN, msg, firstOrNil(data))
}

func (l *Logger) Error(msg string, err error, data ...interface{}) {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	l.log(ERROR, msg, firstOrNil(data))
}

func (l *Logger) Progress(msg string, data interface{}) {
	l.log(PROGRESS, msg, data)
}

// firstOrNil returns the first element of data if present, nil otherwise
func firstOrNil(data []interface{}) interface{} {
	if len(data) > 0 {
		return data[0]
	}
	return nil
}

// CollectStart logs the start of a collection run
func (l *Logger) CollectStart(services, regions, concurrency int) {
	l.Info("Starting collection", map[string]interface{}{
		"services":    services,
		"regions":     regions,
		"units":       services * regions,
		"concurrency": concurrency,
	})
}

// UnitStart logs the start of one (service, region) unit
func (l *Logger) UnitStart(service, region string) {
	l.Debug("Collecting", map[string]interface{}{
		"service": service,
		"region":  region,
	})
}

// UnitComplete logs a unit that finished without error
func (l *Logger) UnitComplete(service, region string, count int, elapsed time.Duration) {
	l.Debug("Collected", map[string]interface{}{
		"service":    service,
		"region":     region,
		"resources":  count,
		"elapsed_ms": elapsed.Milliseconds(),
	})
}

// UnitFailed logs a failed unit. Failures do not stop the run, so they are
// reported as warnings.
func (l *Logger) UnitFailed(service, region string, err error) {
	msg := "Collection failed"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	l.Warn(msg, map[string]interface{}{
		"service": service,
		"region":  region,
	})
}

// CollectComplete logs the end of a collection run
func (l *Logger) CollectComplete(resources, failures int, elapsed time.Duration) {
	l.Info("Collection complete", map[string]interface{}{
		"resources": resources,
		"failures":  failures,
		"elapsed":   elapsed.Round(time.Millisecond).String(),
	})
}

// Default logger methods
func Debug(msg string, data ...interface{}) {
	defaultLogger.Debug(msg, data...)
}

func Info(msg string, data ...interface{}) {
	defaultLogger.Info(msg, data...)
}

func Warn(msg string, data ...interface{}) {
	defaultLogger.Warn(msg, data...)
}

func Error(msg string, err error, data ...interface{}) {
	defaultLogger.Error(msg, err, data...)
}

func Progress(msg string, data ...interface{}) {
	defaultLogger.Progress(msg, firstOrNil(data))
}

func CollectStart(services, regions, concurrency int) {
	defaultLogger.CollectStart(services, regions, concurrency)
}

func UnitStart(service, region string) {
	defaultLogger.UnitStart(service, region)
}

func UnitComplete(service, region string, count int, elapsed time.Duration) {
	defaultLogger.UnitComplete(service, region, count, elapsed)
}

func UnitFailed(service, region string, err error) {
	defaultLogger.UnitFailed(service, region, err)
}

func CollectComplete(resources, failures int, elapsed time.Duration) {
	defaultLogger.CollectComplete(resources, failures, elapsed)
}
