// Package logging wraps a shared zap logger behind package-level helpers.
// InitLogger must run after config.InitConfig and before anything logs.
package logging

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dev-sgill/arbiter/api/config"
)

var Log *zap.Logger

func InitLogger() {
	cfg := zap.NewProductionConfig()

	// LOG_LEVEL overrides the production default
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		if level, err := zapcore.ParseLevel(logLevel); err == nil {
			cfg.Level.SetLevel(level)
		}
	}

	logFile := config.GetString("log.file")
	errorFile := strings.TrimSuffix(logFile, filepath.Ext(logFile)) + "_error.log"
	ensureLogFile(logFile)
	ensureLogFile(errorFile)

	cfg.OutputPaths = []string{"stdout", logFile}
	cfg.ErrorOutputPaths = []string{"stderr", errorFile}

	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var err error
	Log, err = cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}

	zap.ReplaceGlobals(Log)
}

func ensureLogFile(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		file, err := os.Create(path)
		if err != nil {
			panic(err)
		}
		file.Close()
	}
}

func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
}

// WithContext returns a child logger carrying the given fields.
func WithContext(fields ...zap.Field) *zap.Logger {
	return Log.With(fields...)
}

func Sync() error {
	return Log.Sync()
}
