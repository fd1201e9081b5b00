// logger.go: Logging surface for Vigil
//
// Vigil never logs on its own behalf: everything the manager has to say goes
// through the four-channel Logger interface, which defaults to a null object.
// Applications plug in whatever they already run; a zap adapter ships here
// because that is what production deployments reach for.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package vigil

import (
	"go.uber.org/zap"
)

// Logger is the four-channel logging capability the manager consumes.
// Every message a manager emits is prefixed with its name as "<name>: <msg>".
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// NopLogger discards every message. It is the default when no logger is
// configured, so logging is never a nil check at call sites.
type NopLogger struct{}

func (NopLogger) Debug(string) {}
func (NopLogger) Info(string)  {}
func (NopLogger) Warn(string)  {}
func (NopLogger) Error(string) {}

// FuncLogger adapts free functions to the Logger interface. Unset channels
// are no-ops. Mostly useful in tests and small tools.
type FuncLogger struct {
	DebugFn func(msg string)
	InfoFn  func(msg string)
	WarnFn  func(msg string)
	ErrorFn func(msg string)
}

func (f FuncLogger) Debug(msg string) {
	if f.DebugFn != nil {
		f.DebugFn(msg)
	}
}

func (f FuncLogger) Info(msg string) {
	if f.InfoFn != nil {
		f.InfoFn(msg)
	}
}

func (f FuncLogger) Warn(msg string) {
	if f.WarnFn != nil {
		f.WarnFn(msg)
	}
}

func (f FuncLogger) Error(msg string) {
	if f.ErrorFn != nil {
		f.ErrorFn(msg)
	}
}

// prefixedLogger decorates another Logger with the manager name so that all
// managers sharing one sink remain distinguishable.
type prefixedLogger struct {
	prefix string
	next   Logger
}

func newPrefixedLogger(name string, next Logger) Logger {
	if name == "" {
		return next
	}
	return &prefixedLogger{prefix: name + ": ", next: next}
}

func (p *prefixedLogger) Debug(msg string) { p.next.Debug(p.prefix + msg) }
func (p *prefixedLogger) Info(msg string)  { p.next.Info(p.prefix + msg) }
func (p *prefixedLogger) Warn(msg string)  { p.next.Warn(p.prefix + msg) }
func (p *prefixedLogger) Error(msg string) { p.next.Error(p.prefix + msg) }

// zapLogger bridges the Logger interface onto a zap.Logger.
type zapLogger struct {
	l *zap.Logger
}

// NewZapLogger wraps a zap.Logger as a vigil Logger.
func NewZapLogger(l *zap.Logger) Logger {
	return &zapLogger{l: l}
}

func (z *zapLogger) Debug(msg string) { z.l.Debug(msg) }
func (z *zapLogger) Info(msg string)  { z.l.Info(msg) }
func (z *zapLogger) Warn(msg string)  { z.l.Warn(msg) }
func (z *zapLogger) Error(msg string) { z.l.Error(msg) }

// NewProductionLogger builds a Logger on zap's production preset. Convenience
// for applications that have no logging stack of their own yet.
func NewProductionLogger() (Logger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return NewZapLogger(l), nil
}
