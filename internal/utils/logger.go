package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const stderrSink = "stderr"

// NewApplicationLogger builds the console logger. Log lines go to stderr so
// that tree and export output on stdout stays clean for piping. Only warnings
// and errors are shown unless debug is set.
func NewApplicationLogger(debug bool) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if debug {
		level = zapcore.DebugLevel
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = ""
	encoderConfig.CallerKey = ""
	encoderConfig.StacktraceKey = ""
	encoderConfig.NameKey = ""
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Encoding:          "console",
		EncoderConfig:     encoderConfig,
		OutputPaths:       []string{stderrSink},
		ErrorOutputPaths:  []string{stderrSink},
		DisableCaller:     true,
		DisableStacktrace: true,
	}
	return config.Build()
}

// LoggerOrNop returns logger, or a no-op logger when logger is nil.
func LoggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
