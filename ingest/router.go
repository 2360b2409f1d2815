// Package ingest expõe o pipeline de mensagens por HTTP.
package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	rlinfra "ingest-gateway/middleware/ratelimit/infra"
)

const (
	CorrelationHeader = "X-Correlation-ID"

	DefaultMaxBodyBytes  int64 = 1 << 20
	DefaultHealthTimeout       = 2 * time.Second

	PathMessages = "/api/messages"
	PathHealth   = "/health"
	PathStats    = "/stats/ratelimit"
)

type Processor interface {
	Process(ctx context.Context, raw []byte, correlationID string) (bool, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type StatsReporter interface {
	Report(ctx context.Context) (rlinfra.StatsSnapshot, error)
}

type Options struct {
	Processor Processor
	Health    Pinger
	// Stats nil deixa /stats/ratelimit fora do roteador.
	Stats         StatsReporter
	MaxBodyBytes  int64
	HealthTimeout time.Duration
	// ExposeErrors inclui o texto do erro nas respostas 500 (fora de produção).
	ExposeErrors bool
}

func NewRouter(opts Options) *mux.Router {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = DefaultHealthTimeout
	}

	r := mux.NewRouter()
	r.Handle(PathMessages, messagesHandler(opts)).Methods(http.MethodPost)
	r.Handle(PathHealth, healthHandler(opts)).Methods(http.MethodGet)
	if opts.Stats != nil {
		r.Handle(PathStats, statsHandler(opts.Stats)).Methods(http.MethodGet)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
