// Package log is the process-wide leveled logger. It writes to stderr
// so stdout stays free for the trainer's own surfaces (calibration
// prompts, device listings, the TUI). Components that already have a
// "log" identifier import it aliased as applog.
package log

import (
	"fmt"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

// String returns the level's tag as it appears in output.
func (l LogLevel) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// currentLevel holds the global log level. Atomic so the audio and
// analysis goroutines can gate Debugf calls without a lock.
var currentLevel atomic.Uint32

// Microsecond timestamps: callback timing problems show up at that
// resolution.
var logger = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel reports the current global logging level.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

func emit(level LogLevel, format string, v ...any) {
	if level < GetLevel() {
		return
	}
	logger.Printf("[%-5s] %s", level, fmt.Sprintf(format, v...))
}

// Debugf logs a formatted message at debug level.
func Debugf(format string, v ...any) {
	emit(LevelDebug, format, v...)
}

// Infof logs a formatted message at info level.
func Infof(format string, v ...any) {
	emit(LevelInfo, format, v...)
}

// Warnf logs a formatted message at warn level.
func Warnf(format string, v ...any) {
	emit(LevelWarn, format, v...)
}

// Errorf logs a formatted message at error level.
func Errorf(format string, v ...any) {
	emit(LevelError, format, v...)
}

// Fatalf logs a formatted message and exits the process. Fatal
// messages ignore the current level.
func Fatalf(format string, v ...any) {
	logger.Fatalf("[%-5s] %s", LevelFatal, fmt.Sprintf(format, v...))
}
