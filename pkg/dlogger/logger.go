// Package dlogger exposes a simple zap logger, with log levels
package dlogger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// LogLevelInfo sets the log level to info
	LogLevelInfo = "info"

	// LogLevelDebug sets the log level to debug
	LogLevelDebug = "debug"

	// LogLevelWarn sets the log level to warn
	LogLevelWarn = "warn"

	// LogLevelError sets the log level to error
	LogLevelError = "error"

	// LogLevelNone sets logger to no logging
	LogLevelNone = "none"
)

// GetLogger returns a zap logger with the specified level
func GetLogger(logLevel string) (*zap.Logger, error) {
	if logLevel == LogLevelNone {
		return zap.NewNop(), nil
	}
	zapConfig := zap.NewProductionConfig()
	var lvl zapcore.Level
	err := lvl.UnmarshalText([]byte(logLevel))
	if err != nil {
		return nil, err
	}
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// GetConsoleLogger returns a human readable zap logger writing to stderr, with the specified level.
//
// This is the logger used by the CLI.
func GetConsoleLogger(logLevel string) (*zap.Logger, error) {
	if logLevel == LogLevelNone {
		return zap.NewNop(), nil
	}
	zapConfig := zap.NewDevelopmentConfig()
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, err
	}
	zapConfig.Level = zap.NewAtomicLevelAt(lvl)
	zapConfig.DisableStacktrace = true
	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapConfig.Build()
}

// MustGetLogger returns a zap logger with the specified level or panics
func MustGetLogger(logLevel string) *zap.Logger {
	l, err := GetLogger(logLevel)
	if err != nil {
		panic(err)
	}
	return l
}

// BadgerLogger adapts a zap logger to the logging interface expected by badger
type BadgerLogger struct {
	l *zap.SugaredLogger
}

// NewBadgerLogger wraps a zap logger for badger
func NewBadgerLogger(l *zap.Logger) *BadgerLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &BadgerLogger{l: l.Named("badger").WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func trim(format string, args ...interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}

// Errorf logs at error level
func (b *BadgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error(trim(format, args...))
}

// Warningf logs at warn level
func (b *BadgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn(trim(format, args...))
}

// Infof logs at info level
func (b *BadgerLogger) Infof(format string, args ...interface{}) {
	b.l.Info(trim(format, args...))
}

// Debugf logs at debug level
func (b *BadgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Debug(trim(format, args...))
}
