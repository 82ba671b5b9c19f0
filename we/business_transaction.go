package we

import (
	"context"
)

// BusinessTransactionContext describes the business transaction open in a
// unit of work. NestingDepth counts the callers that joined it.
type BusinessTransactionContext struct {
	TransactionID TransactionID
	NestingDepth  int
}

// BusinessTransactionHolder tracks the business transaction of one unit of
// work. It is not safe for concurrent use; a unit of work is never shared
// between goroutines.
type BusinessTransactionHolder struct {
	current *BusinessTransactionContext
}

// Open starts a business transaction with an id from newID, or joins the open
// one by incrementing its depth.
func (h *BusinessTransactionHolder) Open(newID func() TransactionID) BusinessTransactionContext {
	if h.current == nil {
		h.current = &BusinessTransactionContext{TransactionID: newID(), NestingDepth: 1}
	} else {
		h.current.NestingDepth++
	}

	return *h.current
}

// Close leaves one nesting level and forgets the transaction at depth zero.
func (h *BusinessTransactionHolder) Close() error {
	if h.current == nil {
		return TransactionInvariant("no business transaction to close")
	}

	if h.current.NestingDepth < 1 {
		h.current = nil
		return TransactionInvariant("business transaction nesting depth corrupted")
	}

	h.current.NestingDepth--
	if h.current.NestingDepth == 0 {
		h.current = nil
	}

	return nil
}

func (h *BusinessTransactionHolder) Current() (BusinessTransactionContext, bool) {
	if h.current == nil {
		return BusinessTransactionContext{}, false
	}

	return *h.current, true
}

func (h *BusinessTransactionHolder) IsActive() bool {
	return h.current != nil
}

// BusinessTransactionHolderFrom returns the holder of the unit of work in ctx.
func BusinessTransactionHolderFrom(ctx context.Context) (*BusinessTransactionHolder, error) {
	uow, ok := ctx.Value(unitOfWorkKey{}).(*unitOfWork)
	if !ok {
		return nil, ErrNoTransaction
	}

	return &uow.business, nil
}

// CurrentBusinessTransaction reports the business transaction open in ctx.
func CurrentBusinessTransaction(ctx context.Context) (BusinessTransactionContext, bool) {
	holder, err := BusinessTransactionHolderFrom(ctx)
	if err != nil {
		return BusinessTransactionContext{}, false
	}

	return holder.Current()
}
