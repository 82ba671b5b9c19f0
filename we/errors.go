package we

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound               = errors.New("not-found")
	ErrConcurrencyConflict    = errors.New("concurrency-conflict")
	ErrInvalidStateTransition = errors.New("invalid-state-transition")
	ErrTransactionInvariant   = errors.New("transaction-invariant-violation")

	// ErrNoTransaction is returned when an operation that must join a storage
	// transaction is called outside of one.
	ErrNoTransaction = errors.New("no-storage-transaction")
)

type NotFoundError struct {
	Aggregate AggregateIdentifier
}

func NotFound(id AggregateIdentifier) error {
	return &NotFoundError{Aggregate: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Aggregate.Encode())
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type ConcurrencyConflictError struct {
	Aggregate AggregateIdentifier
	Expected  int64
	Actual    int64
}

func ConcurrencyConflict(id AggregateIdentifier, expected int64, actual int64) error {
	return &ConcurrencyConflictError{Aggregate: id, Expected: expected, Actual: actual}
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s: expected version %d, found %d", e.Aggregate.Encode(), e.Expected, e.Actual)
}

func (e *ConcurrencyConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

type InvalidStateTransitionError struct {
	From string
	To   string
}

func InvalidStateTransition[S any](from S, to S) error {
	return &InvalidStateTransitionError{From: fmt.Sprint(from), To: fmt.Sprint(to)}
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

type TransactionInvariantError struct {
	Reason string
}

func TransactionInvariant(reason string) error {
	return &TransactionInvariantError{Reason: reason}
}

func (e *TransactionInvariantError) Error() string {
	return "business transaction: " + e.Reason
}

func (e *TransactionInvariantError) Is(target error) bool {
	return target == ErrTransactionInvariant
}
