// Package logger monta o zerolog.Logger do processo e o middleware que
// anexa um logger por requisição ao contexto.
package logger

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	// Level aceita os nomes do zerolog (debug, info, warn, error...). Vazio = info.
	Level string
	// Format "console" liga a saída legível; qualquer outro valor gera JSON.
	Format string
	Output io.Writer
}

func New(cfg Config) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if s := strings.TrimSpace(cfg.Level); s != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return zerolog.Nop(), err
		}
		if l != zerolog.NoLevel {
			level = l
		}
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

// WithCorrelationID devolve um contexto cujo logger (zerolog.Ctx) carrega o
// campo correlation_id.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	l := zerolog.Ctx(ctx).With().Str("correlation_id", correlationID).Logger()
	return l.WithContext(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Middleware coloca `base` no contexto da requisição e registra uma linha
// por requisição ao final.
func Middleware(base zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := base.WithContext(r.Context())
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r.WithContext(ctx))

			ev := base.Info()
			if rec.status >= http.StatusInternalServerError {
				ev = base.Error()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
