// Package logging builds the structured zap logger used across the service.
package logging

import (
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level, encoding and sinks for the logger.
type Config struct {
	Level       string   `mapstructure:"level" yaml:"level"`
	Encoding    string   `mapstructure:"encoding" yaml:"encoding"`
	OutputPaths []string `mapstructure:"output_paths" yaml:"output_paths"`
	Development bool     `mapstructure:"development" yaml:"development"`
}

// DefaultConfig returns JSON logging at info level to stdout.
func DefaultConfig() Config {
	return Config{
		Level:       "INFO",
		Encoding:    "json",
		OutputPaths: []string{"stdout"},
	}
}

// New builds a zap logger from cfg. Empty fields fall back to DefaultConfig.
func New(cfg Config) (*zap.Logger, error) {
	def := DefaultConfig()
	if cfg.Encoding == "" {
		cfg.Encoding = def.Encoding
	}
	if len(cfg.OutputPaths) == 0 {
		cfg.OutputPaths = def.OutputPaths
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	if cfg.Development {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	}
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(ParseLevel(cfg.Level)),
		Development:      cfg.Development,
		Encoding:         cfg.Encoding,
		EncoderConfig:    encoderCfg,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building logger")
	}
	return logger, nil
}

// ParseLevel maps a level name to a zap level. Unknown names map to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE", "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "FATAL":
		return zapcore.FatalLevel
	case "DPANIC":
		return zapcore.DPanicLevel
	default:
		return zapcore.InfoLevel
	}
}

// Sync flushes buffered entries. Errors from syncing stdout/stderr are ignored.
func Sync(logger *zap.Logger) {
	if logger == nil {
		return
	}
	_ = logger.Sync()
}
