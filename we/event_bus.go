package we

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// EventLog appends records to the outgoing log. Implementations write into
// the storage transaction carried by ctx.
type EventLog interface {
	Append(ctx context.Context, records ...Record) error
}

type Projector interface {
	Project(ctx context.Context, event *Event) error
}

type ProjectorFunc func(ctx context.Context, event *Event) error

func (f ProjectorFunc) Project(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

type EventBusOption func(*LocalEventBus)

func WithSnapshotStores(stores ...SnapshotStore) EventBusOption {
	return func(bus *LocalEventBus) {
		bus.stores = append(bus.stores, stores...)
	}
}

func WithProjector(eventType EventType, projector Projector) EventBusOption {
	return func(bus *LocalEventBus) {
		bus.Subscribe(eventType, projector)
	}
}

func WithBusClock(clock Clock) EventBusOption {
	return func(bus *LocalEventBus) {
		bus.clock = clock
	}
}

func WithBusLogger(logger *zerolog.Logger) EventBusOption {
	return func(bus *LocalEventBus) {
		bus.log = logger
	}
}

// LocalEventBus routes events of this service to its snapshot stores, the
// outgoing log and in-process projectors, all within the caller's storage
// transaction.
type LocalEventBus struct {
	eventLog   EventLog
	stores     []SnapshotStore
	projectors map[EventType][]Projector
	clock      Clock
	log        *zerolog.Logger
}

func NewLocalEventBus(eventLog EventLog, options ...EventBusOption) *LocalEventBus {
	bus := &LocalEventBus{eventLog: eventLog, projectors: map[EventType][]Projector{}}
	for _, option := range options {
		option(bus)
	}

	if bus.clock == nil {
		bus.clock = SystemClock
	}

	if bus.log == nil {
		bus.log = &log.Logger
	}

	return bus
}

// Register adds snapshot stores. Registration is not synchronized and must
// complete before the bus is used.
func (b *LocalEventBus) Register(stores ...SnapshotStore) {
	b.stores = append(b.stores, stores...)
}

func (b *LocalEventBus) Subscribe(eventType EventType, projector Projector) {
	b.projectors[eventType] = append(b.projectors[eventType], projector)
}

func (b *LocalEventBus) Clock() Clock {
	return b.clock
}

// Emit persists event through the snapshot stores handling it, appends it to
// the log and runs its projectors. Any failure leaves the caller to roll back
// the storage transaction.
func (b *LocalEventBus) Emit(ctx context.Context, key AggregateEventMessageKey, event *Event) error {
	if err := RequireTransaction(ctx); err != nil {
		return err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, fmt.Sprintf("emit %s", event.Type))
	defer span.End()
	span.SetAttributes(attribute.String("aggregate", key.Aggregate.String()))

	b.stamp(ctx, event)

	handled := false
	for _, store := range b.stores {
		if !store.HandlesMessage(key, event) {
			continue
		}

		handled = true
		if err := store.HandleMessage(ctx, key, event, Online); err != nil {
			return err
		}
	}

	if !handled {
		return errors.Errorf("no snapshot store handles %s", key.Aggregate.Type)
	}

	if err := b.eventLog.Append(ctx, Record{Key: key, Event: event}); err != nil {
		return errors.Wrapf(err, "failed to append %s to the event log", event.Type)
	}

	for _, projector := range b.projectors[event.Type] {
		if err := projector.Project(ctx, event); err != nil {
			return errors.Wrapf(err, "projection of %s failed", event.Type)
		}
	}

	b.log.Debug().
		Str("aggregate", key.Aggregate.String()).
		Str("type", event.Type.String()).
		Str("transaction", event.TransactionID.String()).
		Msg("event emitted")

	return nil
}

// EmitMarker appends a business transaction marker to the log.
func (b *LocalEventBus) EmitMarker(ctx context.Context, key MessageKey, event *Event) error {
	if err := RequireTransaction(ctx); err != nil {
		return err
	}

	b.stamp(ctx, event)

	if err := b.eventLog.Append(ctx, Record{Key: key, Event: event}); err != nil {
		return errors.Wrapf(err, "failed to append %s marker to the event log", key.Kind())
	}

	return nil
}

func (b *LocalEventBus) stamp(ctx context.Context, event *Event) {
	now := b.clock.Now()
	if event.ID == "" {
		event.ID = NewEventID(now)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}

	if event.User == "" {
		event.User = UserFrom(ctx)
	}

	if current, ok := CurrentBusinessTransaction(ctx); ok && event.TransactionID == "" {
		event.TransactionID = current.TransactionID
	}
}
