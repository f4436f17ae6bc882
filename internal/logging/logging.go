package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var defaultLogger = zap.NewNop()

// Initialize replaces the package logger. Until it is called every log call
// is discarded.
func Initialize(level string, isDebug bool) error {
	logger, err := New(level, isDebug)
	if err != nil {
		return err
	}

	defaultLogger = logger
	return nil
}

func New(level string, isDebug bool) (*zap.Logger, error) {
	var config zap.Config

	if isDebug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	l := zap.InfoLevel
	switch strings.ToUpper(level) {
	case "TRACE", "DEBUG":
		l = zap.DebugLevel
	case "WARN":
		l = zap.WarnLevel
	case "ERROR":
		l = zap.ErrorLevel
	}

	config.Level = zap.NewAtomicLevelAt(l)

	return config.Build()
}

func Debug(msg string, fields ...zap.Field) {
	defaultLogger.WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	defaultLogger.WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	defaultLogger.WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	defaultLogger.WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

func Sync() {
	_ = defaultLogger.Sync()
}
