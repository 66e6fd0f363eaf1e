// Package logger builds the zap logger shared by the CLI and the API server.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// encoderConfig keeps log lines keyed the same across console and json
// output. The message key is "step" so every line names the pipeline or
// handler step it belongs to.
var encoderConfig = zapcore.EncoderConfig{
	MessageKey: "step",

	LevelKey:    "level",
	EncodeLevel: zapcore.LowercaseLevelEncoder,

	TimeKey:    "time",
	EncodeTime: zapcore.RFC3339TimeEncoder,

	CallerKey:    "caller",
	EncodeCaller: zapcore.ShortCallerEncoder,
}

// New builds the process logger. Console encoding is the default; json suits
// machine consumers. Debug lowers the level threshold. Callers own the final
// Sync.
func New(json, debug bool) (*zap.Logger, error) {
	encoding := "console"
	if json {
		encoding = "json"
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	cfg := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    encoderConfig,
	}

	return cfg.Build()
}

// TruncateForLog shortens s to limit runes, appending an ellipsis when
// truncated. Prompt and response previews go through this so debug logs stay
// readable.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
