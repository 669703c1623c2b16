package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a named component logger. Error both logs and returns the
// formatted error so handlers can `return log.Error(...)` in one line.
type Logger struct {
	name  string
	zl    *zap.Logger
	sugar *zap.SugaredLogger
}

var (
	rootOnce sync.Once
	root     *zap.Logger
)

func rootLogger() *zap.Logger {
	rootOnce.Do(func() {
		var err error
		if strings.EqualFold(os.Getenv("ENV"), "production") {
			root, err = zap.NewProduction(zap.AddCallerSkip(1))
		} else {
			cfg := zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
			root, err = cfg.Build(zap.AddCallerSkip(1))
		}
		if err != nil {
			root = zap.NewNop()
		}
	})
	return root
}

// New returns a logger scoped to the given component name.
func New(name string) *Logger {
	zl := rootLogger().Named(name)
	return &Logger{name: name, zl: zl, sugar: zl.Sugar()}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Success logs at info level with a visual marker so happy paths stand out
// in mixed output.
func (l *Logger) Success(format string, args ...interface{}) {
	l.sugar.Infof("✅ "+format, args...)
}

// Error logs the formatted message and returns it as an error.
func (l *Logger) Error(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	l.sugar.Error(err.Error())
	return err
}

func (l *Logger) Fatal(format string, args ...interface{}) {
	l.sugar.Fatalf(format, args...)
}

// Zap exposes the underlying structured logger for packages that log with
// typed fields.
func (l *Logger) Zap() *zap.Logger {
	return l.zl.WithOptions(zap.AddCallerSkip(-1))
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	if root != nil {
		_ = root.Sync()
	}
}
