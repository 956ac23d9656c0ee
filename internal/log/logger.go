// SPDX-License-Identifier: MIT
/*
Package log is the application's leveled logger. The level is a single
atomic value, so it can be checked from any goroutine. Nothing on the audio
callback path logs. Use it from setup, shutdown and consumer loops only.

Messages follow the "Component: message" convention, for example
"UDPPublisher: Sent packet 12".
*/
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel is the severity of a message.
type LogLevel uint32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a case-insensitive name to a LogLevel. Unknown names
// return LevelInfo and false.
func ParseLevel(name string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

var (
	currentLevel atomic.Uint32
	logger       = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)
)

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global level.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel returns the global level.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects all messages, e.g. away from the terminal while the
// TUI owns it.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func logf(level LogLevel, format string, v ...any) {
	if level < GetLevel() {
		return
	}
	logger.Printf("[%-5s] %s", level, fmt.Sprintf(format, v...))
}

// Debugf logs at LevelDebug.
func Debugf(format string, v ...any) { logf(LevelDebug, format, v...) }

// Infof logs at LevelInfo.
func Infof(format string, v ...any) { logf(LevelInfo, format, v...) }

// Warnf logs at LevelWarn.
func Warnf(format string, v ...any) { logf(LevelWarn, format, v...) }

// Errorf logs at LevelError.
func Errorf(format string, v ...any) { logf(LevelError, format, v...) }

// Fatalf logs regardless of level and exits with status 1.
func Fatalf(format string, v ...any) {
	logger.Fatalf("[FATAL] %s", fmt.Sprintf(format, v...))
}
