package repository

import "context"

// Transactor выполняет функцию в одной транзакции. Транзакция передаётся через ctx,
// вложенные вызовы присоединяются к внешней.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	// AfterCommit откладывает fn до фиксации внешней транзакции; при откате fn не вызывается.
	// Вне транзакции fn выполняется сразу.
	AfterCommit(ctx context.Context, fn func())
}
