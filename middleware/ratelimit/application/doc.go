// Package application decide, sem conhecer HTTP, se uma requisição entra:
// Service.Decide consulta o Admitter e aplica o fail-open; ConcurrencyService
// reserva uma vaga de processamento com prazo.
package application
