// Package logging builds the zap loggers used throughout glyphcaster.
package logging

import (
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrInvalidLevel is returned for an unknown level name.
var ErrInvalidLevel = errors.New("logging: invalid level")

type options struct {
	out   zapcore.WriteSyncer
	color bool
}

// Option configures New.
type Option func(*options)

// WithOutput writes log entries to w instead of stderr.
func WithOutput(w zapcore.WriteSyncer) Option {
	return func(o *options) {
		o.out = w
		o.color = false
	}
}

// ParseLevel parses "debug", "info", "warn" or "error". The empty string is
// "info".
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	return lvl, nil
}

// New builds a logger. Development loggers write human-readable lines,
// colored when stderr is a terminal; others write JSON.
func New(level string, development bool, opts ...Option) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	o := options{
		out:   zapcore.Lock(os.Stderr),
		color: isatty.IsTerminal(os.Stderr.Fd()),
	}
	for _, opt := range opts {
		opt(&o)
	}

	var enc zapcore.Encoder
	if development {
		cfg := zap.NewDevelopmentEncoderConfig()
		if o.color {
			cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		enc = zapcore.NewConsoleEncoder(cfg)
	} else {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	}

	core := zapcore.NewCore(enc, o.out, zap.NewAtomicLevelAt(lvl))
	zopts := []zap.Option{zap.AddCaller(), zap.ErrorOutput(o.out)}
	if development {
		zopts = append(zopts, zap.Development(), zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return zap.New(core, zopts...), nil
}
