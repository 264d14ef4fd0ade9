package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Defaults for the rotating file sink.
const (
	DefaultRotationTime = 24 * time.Hour
	DefaultMaxAge       = 7 * 24 * time.Hour
)

// Config selects level, encoding and an optional rotating file sink.
type Config struct {
	Level       string
	Development bool
	// FilePath enables a second JSON sink rotated every RotationTime.
	FilePath     string
	RotationTime time.Duration
	MaxAge       time.Duration
}

// LevelFromString maps a level name to a zap level. Unknown names are info.
func LevelFromString(l string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a logger writing to stdout and, when cfg.FilePath is set, to
// a daily rotated file.
func New(cfg Config) (*zap.Logger, error) {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg Config, stdout io.Writer) (*zap.Logger, error) {
	lvl := LevelFromString(cfg.Level)
	if cfg.Level == "" && cfg.Development {
		lvl = zapcore.DebugLevel
	}

	var consoleEnc zapcore.Encoder
	if cfg.Development {
		consoleEnc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		consoleEnc = zapcore.NewJSONEncoder(encoderConfig())
	}
	cores := []zapcore.Core{zapcore.NewCore(consoleEnc, zapcore.AddSync(stdout), lvl)}

	if cfg.FilePath != "" {
		w, err := rotatingWriter(cfg)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(w), lvl))
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	return zap.New(zapcore.NewTee(cores...), opts...), nil
}

func encoderConfig() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	return enc
}

func rotatingWriter(cfg Config) (io.Writer, error) {
	rotation := cfg.RotationTime
	if rotation <= 0 {
		rotation = DefaultRotationTime
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if dir := filepath.Dir(cfg.FilePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("logging: create log dir: %w", err)
		}
	}
	w, err := rotatelogs.New(
		cfg.FilePath+".%Y%m%d",
		rotatelogs.WithLinkName(cfg.FilePath),
		rotatelogs.WithRotationTime(rotation),
		rotatelogs.WithMaxAge(maxAge),
	)
	if err != nil {
		return nil, fmt.Errorf("logging: open rotating file: %w", err)
	}
	return w, nil
}
