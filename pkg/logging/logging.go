// Package logging wraps zap with the component-tagged, field-carrying
// convenience calls the rest of this module uses (DebugCF/InfoCF/WarnCF/
// ErrorCF), so background-path failures can be logged with structured
// context without every call site building its own zap.Field slice.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	logger *zap.Logger
)

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	logger = l
}

// SetLogger replaces the package-level logger; tests typically install a
// zaptest or observer-backed logger here.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func fieldsOf(kv map[string]interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)+0)
	for k, v := range kv {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}

func DebugCF(component, msg string, fields map[string]interface{}) {
	current().Debug(msg, append([]zap.Field{zap.String("component", component)}, fieldsOf(fields)...)...)
}

func InfoCF(component, msg string, fields map[string]interface{}) {
	current().Info(msg, append([]zap.Field{zap.String("component", component)}, fieldsOf(fields)...)...)
}

func WarnCF(component, msg string, fields map[string]interface{}) {
	current().Warn(msg, append([]zap.Field{zap.String("component", component)}, fieldsOf(fields)...)...)
}

func ErrorCF(component, msg string, fields map[string]interface{}) {
	current().Error(msg, append([]zap.Field{zap.String("component", component)}, fieldsOf(fields)...)...)
}

// Logger is a component-bound handle for call sites that log repeatedly
// under one component tag.
type Logger struct {
	component string
}

func With(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) Debug(msg string, fields map[string]interface{}) { DebugCF(l.component, msg, fields) }
func (l *Logger) Info(msg string, fields map[string]interface{})  { InfoCF(l.component, msg, fields) }
func (l *Logger) Warn(msg string, fields map[string]interface{})  { WarnCF(l.component, msg, fields) }
func (l *Logger) Error(msg string, fields map[string]interface{}) {
	ErrorCF(l.component, msg, fields)
}
