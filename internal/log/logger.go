// Package log sets up the process-wide zerolog logger.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds a logger writing to w. Development gets console lines at debug
// level; other environments get JSON tagged with service and host. level
// overrides the default when zerolog can parse it.
func New(w io.Writer, env, level, service string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if env == "dev" {
		lvl = zerolog.DebugLevel
	}
	if parsed, err := zerolog.ParseLevel(level); err == nil && level != "" {
		lvl = parsed
	}

	if env == "dev" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
		return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	}
	ctx := zerolog.New(w).Level(lvl).With().Timestamp().Str("service", service)
	if host, err := os.Hostname(); err == nil {
		ctx = ctx.Str("host", host)
	}
	return ctx.Logger()
}

// Init installs New(os.Stdout, ...) as the global logger.
func Init(env, level, service string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = New(os.Stdout, env, level, service)
}
