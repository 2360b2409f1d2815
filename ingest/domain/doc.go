// Package domain define as entidades (empresa, local, dispositivo), as
// mensagens aceitas pelo gateway e o contrato com o armazenamento.
//
// Não depende de HTTP nem de SQL.
package domain
