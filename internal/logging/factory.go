package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects a backend, level and output format.
type Options struct {
	Backend string // slog, zap or zerolog
	Level   string // debug, info, warn, error
	Format  string // text or json; zap and zerolog always write json
	Output  io.Writer
}

// New builds the Logger described by o.
func New(o Options) (Logger, error) {
	if o.Output == nil {
		o.Output = io.Discard
	}
	level, err := parseLevel(o.Level)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(o.Backend) {
	case "", "slog":
		opts := &slog.HandlerOptions{Level: level}
		var h slog.Handler
		if strings.EqualFold(o.Format, "json") {
			h = slog.NewJSONHandler(o.Output, opts)
		} else {
			h = slog.NewTextHandler(o.Output, opts)
		}
		return NewSlogLogger(slog.New(h)), nil

	case "zap":
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		core := zapcore.NewCore(enc, zapcore.AddSync(o.Output), zapLevel(level))
		return NewZapLogger(zap.New(core)), nil

	case "zerolog":
		l := zerolog.New(o.Output).Level(zerologLevel(level)).With().Timestamp().Logger()
		return NewZerologLogger(l), nil

	default:
		return nil, fmt.Errorf("unknown log backend %q", o.Backend)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l <= slog.LevelDebug:
		return zapcore.DebugLevel
	case l <= slog.LevelInfo:
		return zapcore.InfoLevel
	case l <= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func zerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l <= slog.LevelDebug:
		return zerolog.DebugLevel
	case l <= slog.LevelInfo:
		return zerolog.InfoLevel
	case l <= slog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
