// Package logger is a thin, package-level sugar layer over zap, used
// the same way across the core: logger.Debugw/Infow/Warnw/Errorf.
package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu      sync.RWMutex
	sugared *zap.SugaredLogger
)

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	sugared = l.Sugar()
}

// SetLogger swaps the process-wide logger, e.g. to install a
// development config with a different level or encoding.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	sugared = l.Sugar()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugared
}

func Debug(args ...interface{})          { get().Debug(args...) }
func Debugf(tmpl string, args ...interface{}) { get().Debugf(tmpl, args...) }
func Debugw(msg string, kv ...interface{})    { get().Debugw(msg, kv...) }

func Info(args ...interface{})             { get().Info(args...) }
func Infof(tmpl string, args ...interface{})  { get().Infof(tmpl, args...) }
func Infow(msg string, kv ...interface{})     { get().Infow(msg, kv...) }

func Warn(args ...interface{})             { get().Warn(args...) }
func Warnf(tmpl string, args ...interface{})  { get().Warnf(tmpl, args...) }
func Warnw(msg string, kv ...interface{})     { get().Warnw(msg, kv...) }

func Error(args ...interface{})            { get().Error(args...) }
func Errorf(tmpl string, args ...interface{}) { get().Errorf(tmpl, args...) }
func Errorw(msg string, kv ...interface{})    { get().Errorw(msg, kv...) }

func Fatal(args ...interface{}) { get().Fatal(args...) }

// Sync flushes buffered log entries; callers should defer this at
// process shutdown.
func Sync() error {
	return get().Sync()
}
