// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Config represents logger configuration.
type Config struct {
	Output string // "stdout", "stderr", or "file"
	Level  string // "trace", "debug", "info", "warn", "error"
	File   string // log file path (used when Output is "file")

	// Stderr replaces os.Stderr for the "stderr" output. Set it when fd 2
	// is being captured.
	Stderr io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Init initializes the global zerolog logger with the given configuration
// and returns it. The closer releases the log file, if any.
func Init(cfg Config) (zerolog.Logger, io.Closer, error) {
	level := ParseLevel(cfg.Level)

	var (
		writer  io.Writer
		closer  io.Closer = nopCloser{}
		console           = true
	)
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		writer = os.Stdout
	case "stderr", "":
		writer = os.Stderr
		if cfg.Stderr != nil {
			writer = cfg.Stderr
		}
	default:
		if cfg.File == "" {
			return zerolog.Nop(), nil, errors.New("log file path is empty")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), nil, errors.Wrap(err, "create log dir")
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, errors.Wrap(err, "open log file")
		}
		writer = f
		closer = f
		console = false
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.CallerMarshalFunc = shortCaller

	logger := New(writer, level, console)
	zerolog.DefaultContextLogger = &logger
	zlog.Logger = logger

	return logger, closer, nil
}

// New builds a logger on w. Console output is colored, anything else is
// JSON. Caller information is added at debug level and below.
func New(w io.Writer, level zerolog.Level, console bool) zerolog.Logger {
	if console {
		cw := zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.TimeOnly,
		}
		if level <= zerolog.DebugLevel {
			cw.PartsOrder = []string{"time", "level", "message", "caller"}
			cw.FormatCaller = func(i any) string {
				s, _ := i.(string)
				return "(" + s + ")"
			}
		}
		w = cw
	}
	ctx := zerolog.New(w).Level(level).With().Timestamp()
	if level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// ParseLevel parses the log level string. Unknown levels mean info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

func shortCaller(_ uintptr, file string, line int) string {
	parts := strings.Split(file, string(filepath.Separator))
	if len(parts) > 1 {
		return filepath.Join(parts[len(parts)-2:]...) + ":" + strconv.Itoa(line)
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}
