// Package logger re-exports the eigensdk-go logger so SDK packages and callers share one logging
// interface, and supplies a no-op implementation for optional logger parameters.
package logger

import (
	sdklogging "github.com/Layr-Labs/eigensdk-go/logging"
)

type Logger = sdklogging.Logger

// Environment selects the zap preset: "development" or "production".
type Environment = sdklogging.LogLevel

const (
	Development = sdklogging.Development
	Production  = sdklogging.Production
)

// New builds a zap backed logger for the given environment. An empty environment means production.
func New(env Environment) (Logger, error) {
	if env == "" {
		env = Production
	}
	return sdklogging.NewZapLogger(env)
}

// NoOpLogger drops every record.
type NoOpLogger struct{}

func (l *NoOpLogger) Info(msg string, keysAndValues ...interface{})  {}
func (l *NoOpLogger) Infof(format string, args ...interface{})       {}
func (l *NoOpLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (l *NoOpLogger) Debugf(format string, args ...interface{})      {}
func (l *NoOpLogger) Error(msg string, keysAndValues ...interface{}) {}
func (l *NoOpLogger) Errorf(format string, args ...interface{})      {}
func (l *NoOpLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (l *NoOpLogger) Warnf(format string, args ...interface{})       {}
func (l *NoOpLogger) Fatal(msg string, keysAndValues ...interface{}) {}
func (l *NoOpLogger) Fatalf(format string, args ...interface{})      {}
func (l *NoOpLogger) With(keysAndValues ...interface{}) Logger       { return l }
func (l *NoOpLogger) WithComponent(componentName string) Logger      { return l }
func (l *NoOpLogger) WithName(name string) Logger                    { return l }
func (l *NoOpLogger) WithServiceName(serviceName string) Logger      { return l }
func (l *NoOpLogger) WithHostName(hostName string) Logger            { return l }
func (l *NoOpLogger) Sync() error                                    { return nil }

func NewNoOpLogger() Logger {
	return &NoOpLogger{}
}

// EnsureLogger returns lgr, or a no-op logger when lgr is nil.
func EnsureLogger(lgr Logger) Logger {
	if lgr == nil {
		return NewNoOpLogger()
	}
	return lgr
}
