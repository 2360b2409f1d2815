// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência
// na entrada do gateway de mensagens.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (janela fixa em memória ou Redis, token bucket, semáforo)
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Rotas isentas (ex: /health) passam direto
//  2. Extrai a chave do cliente (XFF/API key/IP)
//  3. Chama a camada application para obter a decisão
//  4. Se bloqueado, responde 429 com Retry-After (rate limit) ou 503 (concorrência)
//  5. Se permitido, chama o próximo handler
//
// Variáveis de ambiente do binário (cmd/ingest-gateway) controlam o comportamento,
// como RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, RATE_BACKEND e CONCURRENCY_MAX.
package ratelimit
