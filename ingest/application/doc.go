// Package application contém o pipeline de mensagens: o Dispatcher decide o
// tipo da mensagem e chama o handler correspondente; os handlers executam o
// fluxo de negócio contra os repositórios do pacote domain.
//
// Contrato comum (Dispatcher e handlers): (true, nil) em sucesso, (false, nil)
// para qualquer falha de validação ou de armazenamento, e erro apenas para
// cancelamento (ctx.Err()) ou erro de programação (domain.ErrNilMessage).
package application
