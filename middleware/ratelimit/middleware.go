package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ingest-gateway/middleware/ratelimit/application"
	"ingest-gateway/middleware/ratelimit/domain"

	"github.com/rs/zerolog"
)

const DefaultAPIKeyHeader = "X-Api-Key"

type KeyFunc func(r *http.Request) string

type Options struct {
	Store        domain.Admitter
	Stats        domain.StatsStore
	KeyFn        KeyFunc
	APIKeyHeader string
	// TrustXForwardedFor usa o primeiro IP do X-Forwarded-For como identidade.
	// Só ligue atrás de um proxy que sobrescreve o header.
	TrustXForwardedFor bool
	// ExemptPaths não passam pelo limite (ex: /health). A checagem acontece
	// antes de resolver a chave do cliente.
	ExemptPaths         []string
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
}

// DefaultKeyFunc resolve a identidade do cliente, nesta ordem:
//
//  1. primeiro valor do X-Forwarded-For (se confiável)
//  2. identificador derivado da API key
//  3. host do RemoteAddr
//  4. "unknown"
func DefaultKeyFunc(apiKeyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if trustXFF {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		if apiKeyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(apiKeyHeader)); v != "" {
				return apiKeyID(v)
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return string(domain.UnknownKey)
	}
}

// apiKeyID nunca expõe a chave em si (ela aparece em headers e estatísticas).
func apiKeyID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "apikey:" + hex.EncodeToString(sum[:])[:16]
}

type rejection struct {
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retryAfterSeconds"`
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.APIKeyHeader == "" {
		opts.APIKeyHeader = DefaultAPIKeyHeader
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.APIKeyHeader, opts.TrustXForwardedFor)
	}

	exempt := make(map[string]struct{}, len(opts.ExemptPaths))
	for _, p := range opts.ExemptPaths {
		exempt[p] = struct{}{}
	}

	svc := application.Service{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exempt[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			key := opts.KeyFn(r)

			dec, err := svc.Decide(r.Context(), domain.Key(key))
			if err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Str("client", key).Msg("rate limit backend failed, request admitted")
			}

			if opts.AddRateLimitHeaders && dec.Limit > 0 {
				h := w.Header()
				h.Set("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
				h.Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
				h.Set("X-RateLimit-Reset", strconv.Itoa(dec.ResetSeconds()))
			}

			if opts.Stats != nil {
				if err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     domain.Key(key),
					Allowed: dec.Allowed,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				}); err != nil {
					zerolog.Ctx(r.Context()).Debug().Err(err).Msg("rate limit stats not recorded")
				}
			}

			if !dec.Allowed {
				retryAfter := dec.ResetSeconds()
				zerolog.Ctx(r.Context()).Info().Str("client", key).Int("retry_after", retryAfter).Msg("rate limit exceeded")

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(opts.RejectStatus)
				_ = json.NewEncoder(w).Encode(rejection{
					Error:             "too many requests",
					RetryAfterSeconds: retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
