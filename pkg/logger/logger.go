package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

var (
	InfoLogger  *log.Logger
	ErrorLogger *log.Logger
	DebugLogger *log.Logger
	WarnLogger  *log.Logger
)

func init() {
	InfoLogger = log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	DebugLogger = log.New(os.Stdout, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
	WarnLogger = log.New(os.Stdout, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile)
}

// SetOutput redirects every level to w. Tests use it to silence or capture logs.
func SetOutput(w io.Writer) {
	InfoLogger.SetOutput(w)
	ErrorLogger.SetOutput(w)
	DebugLogger.SetOutput(w)
	WarnLogger.SetOutput(w)
}

func Info(format string, v ...interface{}) {
	InfoLogger.Output(2, fmt.Sprintf(format, v...))
}

func Error(format string, v ...interface{}) {
	ErrorLogger.Output(2, fmt.Sprintf(format, v...))
}

func Debug(format string, v ...interface{}) {
	if debugEnabled() {
		DebugLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

func Warn(format string, v ...interface{}) {
	WarnLogger.Output(2, fmt.Sprintf(format, v...))
}

func debugEnabled() bool {
	return os.Getenv("ENVIRONMENT") == "development" || strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug")
}

// Scoped prefixes every line with a fixed scope such as "room=abc".
type Scoped struct {
	prefix string
}

// WithRoom returns a logger whose lines carry the room id.
func WithRoom(roomID string) *Scoped {
	return &Scoped{prefix: fmt.Sprintf("[room=%s] ", roomID)}
}

func (s *Scoped) Info(format string, v ...interface{}) {
	InfoLogger.Output(2, s.prefix+fmt.Sprintf(format, v...))
}

func (s *Scoped) Warn(format string, v ...interface{}) {
	WarnLogger.Output(2, s.prefix+fmt.Sprintf(format, v...))
}

func (s *Scoped) Error(format string, v ...interface{}) {
	ErrorLogger.Output(2, s.prefix+fmt.Sprintf(format, v...))
}

func (s *Scoped) Debug(format string, v ...interface{}) {
	if debugEnabled() {
		DebugLogger.Output(2, s.prefix+fmt.Sprintf(format, v...))
	}
}
