package repository

import "context"

// Transactor выполняет fn в одной транзакции хранилища.
// Репозитории, вызванные с полученным ctx, работают внутри этой транзакции.
// Вложенный вызов переиспользует внешнюю транзакцию.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
