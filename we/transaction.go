package we

import (
	"context"
)

// Transactor runs fn inside one storage transaction. Nested calls join the
// transaction already carried by ctx. The transaction commits when fn returns
// nil and rolls back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type unitOfWorkKey struct{}

type unitOfWork struct {
	business BusinessTransactionHolder
}

// BeginUnitOfWork marks ctx as running inside a storage transaction and gives
// it a fresh business transaction holder. Transactor implementations call it
// when they open an outermost transaction.
func BeginUnitOfWork(ctx context.Context) context.Context {
	return context.WithValue(ctx, unitOfWorkKey{}, &unitOfWork{})
}

func InUnitOfWork(ctx context.Context) bool {
	_, ok := ctx.Value(unitOfWorkKey{}).(*unitOfWork)
	return ok
}

// RequireTransaction fails with ErrNoTransaction unless ctx carries a storage
// transaction.
func RequireTransaction(ctx context.Context) error {
	if !InUnitOfWork(ctx) {
		return ErrNoTransaction
	}

	return nil
}
