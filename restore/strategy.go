package restore

import (
	"context"

	"github.com/weegigs/wee-streams-go/businesstx"
	"github.com/weegigs/wee-streams-go/we"
)

// Strategy restores the records it claims. Handle runs inside the storage
// transaction opened by the dispatcher.
type Strategy interface {
	Name() string
	CanHandle(record we.Record) bool
	Handle(ctx context.Context, record we.Record) error
}

type strategy struct {
	name      string
	canHandle func(record we.Record) bool
	handle    func(ctx context.Context, record we.Record) error
}

func (s strategy) Name() string {
	return s.name
}

func (s strategy) CanHandle(record we.Record) bool {
	return s.canHandle(record)
}

func (s strategy) Handle(ctx context.Context, record we.Record) error {
	return s.handle(ctx, record)
}

// NewStrategy pairs a predicate with a handler.
func NewStrategy(name string, canHandle func(record we.Record) bool, handle func(ctx context.Context, record we.Record) error) Strategy {
	return strategy{name: name, canHandle: canHandle, handle: handle}
}

// ForSnapshotStore replays aggregate events, tombstones included, into store.
func ForSnapshotStore(name string, store we.SnapshotStore) Strategy {
	return NewStrategy(
		name,
		func(record we.Record) bool {
			key, event, ok := record.AggregateEvent()
			return ok && store.HandlesMessage(key, event)
		},
		func(ctx context.Context, record we.Record) error {
			key, event, _ := record.AggregateEvent()
			return store.HandleMessage(ctx, key, event, we.Restore)
		},
	)
}

// ForTransactions rebuilds a business transaction aware projection. It
// claims every marker and the events accepted by events.
func ForTransactions(manager *businesstx.ConsumerManager, processor businesstx.Processor, events func(record we.Record) bool) Strategy {
	return NewStrategy(
		processor.Name(),
		func(record we.Record) bool {
			return isMarker(record) || events(record)
		},
		func(ctx context.Context, record we.Record) error {
			return manager.Process(ctx, record, processor)
		},
	)
}

// SkipMarkers claims business transaction markers without acting on them, for
// restores that only rebuild snapshots.
func SkipMarkers() Strategy {
	return NewStrategy(
		"skip-markers",
		isMarker,
		func(context.Context, we.Record) error { return nil },
	)
}

func isMarker(record we.Record) bool {
	kind := record.Key.Kind()
	return kind == we.TransactionStartedKey || kind == we.TransactionFinishedKey
}
