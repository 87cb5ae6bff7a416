package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/johann/primevista/internal/config"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// newLogger builds the process logger from log_level and log_format.
// "auto" writes human-readable lines to a terminal and JSON otherwise.
func newLogger(cfg *config.ServerConfig, out io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.LogLevel != "" {
		var err error
		if level, err = zerolog.ParseLevel(cfg.LogLevel); err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
		}
	}

	w := out
	switch cfg.LogFormat {
	case "json":
	case "console":
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime}
	case "", "auto":
		if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime}
		}
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log_format %q (want auto, console or json)", cfg.LogFormat)
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
