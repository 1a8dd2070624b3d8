// Package logging carries the small logger contract shared by the hub's components.
package logging

import (
	"fmt"
	"log"
)

// Logger defines the contract for logging operations with different severity levels.
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// StdLogger implements Logger on top of the standard log package.
type StdLogger struct {
	logger *log.Logger
}

func (l *StdLogger) Info(msg string, args ...interface{}) {
	l.logger.Printf("INFO: %s", fmt.Sprintf(msg, args...))
}

func (l *StdLogger) Error(msg string, args ...interface{}) {
	l.logger.Printf("ERROR: %s", fmt.Sprintf(msg, args...))
}

// NewStdLogger wraps l. A nil l uses the standard logger.
func NewStdLogger(l *log.Logger) *StdLogger {
	if l == nil {
		l = log.Default()
	}
	return &StdLogger{logger: l}
}
