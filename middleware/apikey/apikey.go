// Package apikey autentica requisições por uma chave compartilhada enviada
// num header.
package apikey

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const DefaultHeader = "X-Api-Key"

type Options struct {
	Header string
	// Key é comparada em tempo constante.
	Key string
	// BcryptHash é usado quando Key está vazia.
	BcryptHash  string
	ExemptPaths []string
}

// Enabled informa se há alguma chave configurada.
func (o Options) Enabled() bool {
	return o.Key != "" || o.BcryptHash != ""
}

type verifier struct {
	key  []byte
	hash []byte

	mu sync.RWMutex
	// ok guarda o sha256 das chaves que já passaram no bcrypt; o
	// CompareHashAndPassword é caro demais para rodar a cada requisição.
	ok map[[sha256.Size]byte]struct{}
}

func (v *verifier) verify(presented string) bool {
	if presented == "" {
		return false
	}
	if v.key != nil {
		return subtle.ConstantTimeCompare([]byte(presented), v.key) == 1
	}

	sum := sha256.Sum256([]byte(presented))
	v.mu.RLock()
	_, hit := v.ok[sum]
	v.mu.RUnlock()
	if hit {
		return true
	}

	if bcrypt.CompareHashAndPassword(v.hash, []byte(presented)) != nil {
		return false
	}
	v.mu.Lock()
	v.ok[sum] = struct{}{}
	v.mu.Unlock()
	return true
}

type unauthorized struct {
	Error string `json:"error"`
}

// Middleware recusa com 401 as requisições sem chave válida. Sem chave
// configurada o middleware só repassa.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	header := opts.Header
	if header == "" {
		header = DefaultHeader
	}

	if !opts.Enabled() {
		return func(next http.Handler) http.Handler { return next }
	}

	v := &verifier{ok: make(map[[sha256.Size]byte]struct{})}
	if opts.Key != "" {
		v.key = []byte(opts.Key)
	} else {
		v.hash = []byte(opts.BcryptHash)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(opts.ExemptPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if !v.verify(strings.TrimSpace(r.Header.Get(header))) {
				zerolog.Ctx(r.Context()).Warn().
					Str("path", r.URL.Path).
					Msg("request without valid api key")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(unauthorized{Error: "invalid or missing api key"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
