package modlife

import (
	"strings"
)

// LoggerDecorator wraps a Logger to add behavior without modifying it.
type LoggerDecorator interface {
	Logger

	// GetInnerLogger returns the wrapped logger
	GetInnerLogger() Logger
}

// BaseLoggerDecorator forwards every call to the wrapped logger.
// Other decorators embed it and override the methods they change.
type BaseLoggerDecorator struct {
	inner Logger
}

// NewBaseLoggerDecorator creates a new base decorator wrapping the given logger.
func NewBaseLoggerDecorator(inner Logger) *BaseLoggerDecorator {
	return &BaseLoggerDecorator{inner: inner}
}

// GetInnerLogger returns the wrapped logger
func (d *BaseLoggerDecorator) GetInnerLogger() Logger {
	return d.inner
}

func (d *BaseLoggerDecorator) Info(msg string, args ...any) {
	d.inner.Info(msg, args...)
}

func (d *BaseLoggerDecorator) Error(msg string, args ...any) {
	d.inner.Error(msg, args...)
}

func (d *BaseLoggerDecorator) Warn(msg string, args ...any) {
	d.inner.Warn(msg, args...)
}

func (d *BaseLoggerDecorator) Debug(msg string, args ...any) {
	d.inner.Debug(msg, args...)
}

// SafeLoggerDecorator swallows panics raised by the wrapped logger.
// The engine wraps every configured logger with it: a broken logger
// must never abort a lifecycle operation.
type SafeLoggerDecorator struct {
	*BaseLoggerDecorator
}

// NewSafeLoggerDecorator creates a panic-safe decorator around inner.
func NewSafeLoggerDecorator(inner Logger) *SafeLoggerDecorator {
	return &SafeLoggerDecorator{BaseLoggerDecorator: NewBaseLoggerDecorator(inner)}
}

func (d *SafeLoggerDecorator) Info(msg string, args ...any) {
	defer func() { _ = recover() }()
	d.inner.Info(msg, args...)
}

func (d *SafeLoggerDecorator) Error(msg string, args ...any) {
	defer func() { _ = recover() }()
	d.inner.Error(msg, args...)
}

func (d *SafeLoggerDecorator) Warn(msg string, args ...any) {
	defer func() { _ = recover() }()
	d.inner.Warn(msg, args...)
}

func (d *SafeLoggerDecorator) Debug(msg string, args ...any) {
	defer func() { _ = recover() }()
	d.inner.Debug(msg, args...)
}

// ValueInjectionLoggerDecorator automatically injects key-value pairs into all log events.
// Guides use it to tag every line with the module name.
type ValueInjectionLoggerDecorator struct {
	*BaseLoggerDecorator
	injectedArgs []any
}

// NewValueInjectionLoggerDecorator creates a decorator that automatically injects values into log events.
func NewValueInjectionLoggerDecorator(inner Logger, injectedArgs ...any) *ValueInjectionLoggerDecorator {
	return &ValueInjectionLoggerDecorator{
		BaseLoggerDecorator: NewBaseLoggerDecorator(inner),
		injectedArgs:        injectedArgs,
	}
}

func (d *ValueInjectionLoggerDecorator) combineArgs(originalArgs []any) []any {
	if len(d.injectedArgs) == 0 {
		return originalArgs
	}
	if len(originalArgs) == 0 {
		return d.injectedArgs
	}
	combined := make([]any, 0, len(d.injectedArgs)+len(originalArgs))
	combined = append(combined, d.injectedArgs...)
	combined = append(combined, originalArgs...)
	return combined
}

func (d *ValueInjectionLoggerDecorator) Info(msg string, args ...any) {
	d.inner.Info(msg, d.combineArgs(args)...)
}

func (d *ValueInjectionLoggerDecorator) Error(msg string, args ...any) {
	d.inner.Error(msg, d.combineArgs(args)...)
}

func (d *ValueInjectionLoggerDecorator) Warn(msg string, args ...any) {
	d.inner.Warn(msg, d.combineArgs(args)...)
}

func (d *ValueInjectionLoggerDecorator) Debug(msg string, args ...any) {
	d.inner.Debug(msg, d.combineArgs(args)...)
}

// PrefixLoggerDecorator adds a prefix to all log messages.
type PrefixLoggerDecorator struct {
	*BaseLoggerDecorator
	prefix string
}

// NewPrefixLoggerDecorator creates a decorator that adds a prefix to log messages.
func NewPrefixLoggerDecorator(inner Logger, prefix string) *PrefixLoggerDecorator {
	return &PrefixLoggerDecorator{
		BaseLoggerDecorator: NewBaseLoggerDecorator(inner),
		prefix:              prefix,
	}
}

func (d *PrefixLoggerDecorator) formatMessage(msg string) string {
	if d.prefix == "" {
		return msg
	}
	var builder strings.Builder
	builder.Grow(len(d.prefix) + len(msg) + 1)
	builder.WriteString(d.prefix)
	builder.WriteString(" ")
	builder.WriteString(msg)
	return builder.String()
}

func (d *PrefixLoggerDecorator) Info(msg string, args ...any) {
	d.inner.Info(d.formatMessage(msg), args...)
}

func (d *PrefixLoggerDecorator) Error(msg string, args ...any) {
	d.inner.Error(d.formatMessage(msg), args...)
}

func (d *PrefixLoggerDecorator) Warn(msg string, args ...any) {
	d.inner.Warn(d.formatMessage(msg), args...)
}

func (d *PrefixLoggerDecorator) Debug(msg string, args ...any) {
	d.inner.Debug(d.formatMessage(msg), args...)
}
