package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trialscope/internal/config"
)

const serviceName = "trialscope"

type ctxKey struct{}

// Init configures the global zerolog logger. Console output is used in
// development or when explicitly requested; JSON otherwise.
func Init(cfg config.LogConfig, env string) {
	InitWithWriter(cfg, env, os.Stdout)
}

// InitWithWriter is Init with an explicit destination.
func InitWithWriter(cfg config.LogConfig, env string, out io.Writer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	if env == "development" || strings.EqualFold(cfg.Format, "console") {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}).With().
			Timestamp().
			Str("service", serviceName).
			Logger()
		return
	}

	log.Logger = zerolog.New(out).
		With().
		Timestamp().
		Caller().
		Str("service", serviceName).
		Logger()
}

func parseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithSession returns a context whose logger carries the session id.
func WithSession(ctx context.Context, sessionID string) context.Context {
	l := log.With().Str("session_id", sessionID).Logger()
	return context.WithValue(ctx, ctxKey{}, &l)
}

// FromContext returns the logger stored by WithSession, or the global one.
func FromContext(ctx context.Context) *zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
		return l
	}
	return &log.Logger
}
