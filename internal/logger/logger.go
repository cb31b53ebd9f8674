package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger on stdout. The message goes under "step";
// sampling and stack traces are off so a long session logs every action.
func New(json bool, debug bool) (*zap.Logger, error) {
	return config(json, debug).Build()
}

func config(json, debug bool) zap.Config {
	cfg := zap.NewProductionConfig()

	cfg.Encoding = "console"
	if json {
		cfg.Encoding = "json"
	}

	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if debug {
		cfg.Level.SetLevel(zapcore.DebugLevel)
	}

	cfg.Sampling = nil
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stdout"}

	cfg.EncoderConfig.MessageKey = "step"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncoderConfig.NameKey = ""
	cfg.EncoderConfig.StacktraceKey = ""

	return cfg
}
