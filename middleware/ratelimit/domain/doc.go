// Package domain define as chaves de cliente, as decisões de admissão e os
// contratos (Admitter, SlotPool, StatsStore) que a infra implementa.
package domain
