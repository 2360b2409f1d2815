package ratelimit

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ingest-gateway/middleware/ratelimit/application"
	"ingest-gateway/middleware/ratelimit/domain"
	"ingest-gateway/middleware/ratelimit/infra"

	"github.com/rs/zerolog"
)

// StatusClientClosedRequest é o 499 (convenção do nginx) para quando o
// cliente desistiu antes de termos uma resposta.
const StatusClientClosedRequest = 499

type busy struct {
	Error string `json:"error"`
}

// ConcurrencyOptions limita quantas requisições são processadas ao mesmo
// tempo. Max <= 0 desliga o limite.
type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	ExemptPaths    []string
}

func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	exempt := make(map[string]struct{}, len(opts.ExemptPaths))
	for _, p := range opts.ExemptPaths {
		exempt[p] = struct{}{}
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exempt[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			release, err := svc.Acquire(r.Context())
			if err != nil {
				status, msg := opts.RejectStatus, "server busy"
				if !errors.Is(err, domain.ErrNoSlot) {
					status, msg = StatusClientClosedRequest, "client closed request"
				}
				zerolog.Ctx(r.Context()).Warn().Err(err).Int("status", status).Msg("no processing slot")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_ = json.NewEncoder(w).Encode(busy{Error: msg})
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
