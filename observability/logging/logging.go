package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options tunes the handler built by Setup. The zero value logs JSON at info
// level to stdout.
type Options struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Writer overrides the destination. Tests use it to capture output.
	Writer io.Writer
}

// ParseLevel maps a textual level to slog. Unknown values fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (o Options) writer() io.Writer {
	if o.Writer != nil {
		return o.Writer
	}
	if strings.TrimSpace(o.File) != "" {
		return &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
			MaxAge:     o.MaxAgeDays,
			Compress:   true,
		}
	}
	return os.Stdout
}

// Setup configures the standard library logger to emit structured JSON and returns
// the underlying slog.Logger for richer logging within the service. All log lines
// include the service name and environment when provided. Pretty switches to a
// colourised console handler for local runs.
func Setup(service, env string, opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)
	out := opts.writer()

	var handler slog.Handler
	if opts.Pretty {
		handler = tint.NewHandler(out, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				return redactSensitive(attr)
			},
		})
	} else {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
			AddSource: false,
			Level:     level,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == slog.TimeKey {
					return slog.Attr{Key: "timestamp", Value: attr.Value}
				}
				if attr.Key == slog.LevelKey {
					level := strings.ToUpper(attr.Value.String())
					return slog.String("severity", level)
				}
				if attr.Key == slog.MessageKey {
					return slog.Attr{Key: "message", Value: attr.Value}
				}
				return redactSensitive(attr)
			},
		})
	}

	attrs := []slog.Attr{
		slog.String("service", strings.TrimSpace(service)),
	}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	withArgs := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		withArgs = append(withArgs, attr)
	}

	base := slog.New(handler).With(withArgs...)
	slog.SetDefault(base)

	// Bridge the standard library logger so existing packages continue to work.
	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}
