package we

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

type KeyKind string

const (
	AggregateEventKey      KeyKind = "aggregate"
	TransactionStartedKey  KeyKind = "started"
	TransactionFinishedKey KeyKind = "finished"
)

// MessageKey keys a record on the log. Every key names the root context that
// decides the partition, so all records of one root context stay ordered.
type MessageKey interface {
	Kind() KeyKind
	RootContextIdentifier() AggregateIdentifier
}

type AggregateEventMessageKey struct {
	Aggregate AggregateIdentifier
	Root      AggregateIdentifier
}

func (k AggregateEventMessageKey) Kind() KeyKind {
	return AggregateEventKey
}

func (k AggregateEventMessageKey) RootContextIdentifier() AggregateIdentifier {
	return k.Root
}

func (k AggregateEventMessageKey) String() string {
	return fmt.Sprintf("%s (root %s)", k.Aggregate, k.Root.Encode())
}

type BusinessTransactionStartedMessageKey struct {
	TransactionID TransactionID
	Root          AggregateIdentifier
}

func (k BusinessTransactionStartedMessageKey) Kind() KeyKind {
	return TransactionStartedKey
}

func (k BusinessTransactionStartedMessageKey) RootContextIdentifier() AggregateIdentifier {
	return k.Root
}

type BusinessTransactionFinishedMessageKey struct {
	TransactionID TransactionID
	Root          AggregateIdentifier
}

func (k BusinessTransactionFinishedMessageKey) Kind() KeyKind {
	return TransactionFinishedKey
}

func (k BusinessTransactionFinishedMessageKey) RootContextIdentifier() AggregateIdentifier {
	return k.Root
}

// PartitionFor maps a root context onto one of n partitions.
func PartitionFor(root AggregateIdentifier, n int) int {
	if n <= 1 {
		return 0
	}

	return int(xxhash.Sum64String(root.ID) % uint64(n))
}

type Position struct {
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
	Offset    int64  `json:"offset"`
}

func (p Position) String() string {
	return fmt.Sprintf("%s/%d@%d", p.Topic, p.Partition, p.Offset)
}

// Record is one entry of the log: a key and, unless it is a tombstone of a
// deleted aggregate, an event.
type Record struct {
	Key      MessageKey
	Event    *Event
	Position Position
}

// TransactionID is the business transaction the record belongs to, if any.
func (r Record) TransactionID() TransactionID {
	switch key := r.Key.(type) {
	case BusinessTransactionStartedMessageKey:
		return key.TransactionID
	case BusinessTransactionFinishedMessageKey:
		return key.TransactionID
	}

	if r.Event != nil {
		return r.Event.TransactionID
	}

	return ""
}

// AggregateEvent returns the event of an aggregate record. Tombstones carry no
// value on the log and are rebuilt from the key.
func (r Record) AggregateEvent() (AggregateEventMessageKey, *Event, bool) {
	key, ok := r.Key.(AggregateEventMessageKey)
	if !ok {
		return AggregateEventMessageKey{}, nil, false
	}

	if r.Event != nil {
		return key, r.Event, true
	}

	return key, &Event{Aggregate: key.Aggregate}, true
}
