// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
//   - WindowStore: janela fixa por cliente em memória (padrão)
//   - RedisWindowStore: a mesma janela fixa com contador no Redis
//   - TokenBucketStore: token bucket por chave usando golang.org/x/time/rate
//   - MemoryStatsStore / RedisStatsStore: estatísticas das decisões
//   - ChanPool: semáforo simples para limite de concorrência
package infra
