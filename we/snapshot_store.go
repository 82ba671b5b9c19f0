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

// EventSource tells a snapshot store where an event comes from. Online events
// are produced by commands of this service; restore events are replayed from
// the log and may be redelivered.
type EventSource int

const (
	Online EventSource = iota
	Restore
)

func (s EventSource) String() string {
	switch s {
	case Online:
		return "online"
	case Restore:
		return "restore"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// SnapshotStore keeps the current snapshot of one aggregate type in step with
// its events.
type SnapshotStore interface {
	HandlesMessage(key AggregateEventMessageKey, event *Event) bool
	HandleMessage(ctx context.Context, key AggregateEventMessageKey, event *Event, source EventSource) error
}

// Repository persists snapshots of one aggregate type. Update and Delete are
// compare-and-swap operations on the stored version and fail with
// ErrConcurrencyConflict when it differs from expected.
type Repository[S any] interface {
	Find(ctx context.Context, id AggregateIdentifier) (*Snapshot[S], error)
	Insert(ctx context.Context, snapshot Snapshot[S]) error
	Update(ctx context.Context, snapshot Snapshot[S], expected int64) error
	Delete(ctx context.Context, id AggregateIdentifier, expected int64) error
}

// CanApply decides whether an event with version next may be applied to a
// snapshot at version current. Restored duplicates are skipped.
func CanApply(id AggregateIdentifier, current int64, next int64, source EventSource) (bool, error) {
	if next == current+1 {
		return true, nil
	}

	if source == Restore && next <= current {
		return false, nil
	}

	return false, ConcurrencyConflict(id, next-1, current)
}

type ApplyFunc[S any] func(current *Snapshot[S], event *Event) (S, error)

type ValidateFunc[S any] func(current *Snapshot[S], next S, event *Event) error

type StoreOption[S any] func(*Store[S])

// WithApply replaces the default apply, which takes the new state from the
// event payload.
func WithApply[S any](apply ApplyFunc[S]) StoreOption[S] {
	return func(store *Store[S]) {
		store.apply = apply
	}
}

// WithValidator checks every new state before it is written.
func WithValidator[S any](validate ValidateFunc[S]) StoreOption[S] {
	return func(store *Store[S]) {
		store.validate = validate
	}
}

// WithDeletedEvent overrides which events delete the aggregate. By default a
// tombstone does. Tombstones read from the log carry no event type.
func WithDeletedEvent[S any](deleted func(event *Event) bool) StoreOption[S] {
	return func(store *Store[S]) {
		store.deleted = deleted
	}
}

func WithStoreLogger[S any](logger *zerolog.Logger) StoreOption[S] {
	return func(store *Store[S]) {
		store.log = logger
	}
}

type Store[S any] struct {
	aggregateType AggregateType
	repository    Repository[S]
	apply         ApplyFunc[S]
	validate      ValidateFunc[S]
	deleted       func(event *Event) bool
	log           *zerolog.Logger
}

func NewStore[S any](aggregateType AggregateType, repository Repository[S], options ...StoreOption[S]) *Store[S] {
	store := &Store[S]{aggregateType: aggregateType, repository: repository}
	for _, option := range options {
		option(store)
	}

	if store.apply == nil {
		store.apply = PayloadState[S]
	}

	if store.deleted == nil {
		store.deleted = func(event *Event) bool { return event.IsTombstone() }
	}

	if store.log == nil {
		store.log = &log.Logger
	}

	return store
}

// PayloadState takes the new state from the event payload.
func PayloadState[S any](_ *Snapshot[S], event *Event) (S, error) {
	switch payload := event.Payload.(type) {
	case S:
		return payload, nil
	case *S:
		if payload != nil {
			return *payload, nil
		}
	}

	var zero S
	return zero, errors.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
}

func (s *Store[S]) AggregateType() AggregateType {
	return s.aggregateType
}

func (s *Store[S]) identifier(id string) AggregateIdentifier {
	return AggregateIdentifier{Type: s.aggregateType, ID: id, Version: InitialVersion}
}

// Find returns nil when the aggregate does not exist.
func (s *Store[S]) Find(ctx context.Context, id string) (*Snapshot[S], error) {
	return s.repository.Find(ctx, s.identifier(id))
}

func (s *Store[S]) FindOrFail(ctx context.Context, id string) (Snapshot[S], error) {
	snapshot, err := s.Find(ctx, id)
	if err != nil {
		return Snapshot[S]{}, err
	}

	if snapshot == nil {
		return Snapshot[S]{}, NotFound(s.identifier(id))
	}

	return *snapshot, nil
}

func (s *Store[S]) HandlesMessage(key AggregateEventMessageKey, _ *Event) bool {
	return key.Aggregate.Type == s.aggregateType
}

func (s *Store[S]) IsDeletedEvent(event *Event) bool {
	return s.deleted(event)
}

func (s *Store[S]) HandleMessage(ctx context.Context, key AggregateEventMessageKey, event *Event, source EventSource) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, fmt.Sprintf("snapshot %s", s.aggregateType))
	defer span.End()
	span.SetAttributes(
		attribute.String("aggregate", key.Aggregate.Encode().String()),
		attribute.Int64("version", event.Version()),
		attribute.String("source", source.String()),
	)

	current, err := s.repository.Find(ctx, key.Aggregate)
	if err != nil {
		return errors.Wrapf(err, "failed to load %s", key.Aggregate.Encode())
	}

	version := InitialVersion
	if current != nil {
		version = current.Version()
	}

	if current == nil && s.IsDeletedEvent(event) {
		if source == Restore {
			s.log.Debug().Str("aggregate", key.Aggregate.String()).Msg("skipping deletion of absent snapshot")
			return nil
		}

		return NotFound(key.Aggregate)
	}

	apply, err := CanApply(key.Aggregate, version, event.Version(), source)
	if err != nil {
		return err
	}

	if !apply {
		s.log.Debug().Str("aggregate", key.Aggregate.String()).Int64("current", version).Msg("skipping duplicate event")
		return nil
	}

	updated, err := s.UpdateInternal(ctx, key, event, current)
	if err != nil {
		return err
	}

	if updated != event.Version() {
		return errors.Errorf("%s: snapshot version %d does not match event version %d", key.Aggregate.Encode(), updated, event.Version())
	}

	return nil
}

// UpdateInternal creates, updates or deletes the snapshot for event and
// returns the resulting version.
func (s *Store[S]) UpdateInternal(ctx context.Context, key AggregateEventMessageKey, event *Event, current *Snapshot[S]) (int64, error) {
	if s.IsDeletedEvent(event) {
		if current == nil {
			return InitialVersion, NotFound(key.Aggregate)
		}

		if err := s.repository.Delete(ctx, current.Identifier, current.Version()); err != nil {
			return InitialVersion, err
		}

		return current.Version() + 1, nil
	}

	state, err := s.apply(current, event)
	if err != nil {
		return InitialVersion, err
	}

	if s.validate != nil {
		if err := s.validate(current, state, event); err != nil {
			return InitialVersion, err
		}
	}

	if current == nil {
		snapshot := Snapshot[S]{
			Identifier: key.Aggregate.WithVersion(event.Version()),
			Root:       key.Root,
			Audit:      Audit{}.Touch(event.User, event.Timestamp),
			State:      state,
		}

		if err := s.repository.Insert(ctx, snapshot); err != nil {
			return InitialVersion, err
		}

		return snapshot.Version(), nil
	}

	snapshot := Snapshot[S]{
		Identifier: current.Identifier.WithVersion(event.Version()),
		Root:       current.Root,
		Audit:      current.Audit.Touch(event.User, event.Timestamp),
		State:      state,
	}

	if err := s.repository.Update(ctx, snapshot, current.Version()); err != nil {
		return InitialVersion, err
	}

	return snapshot.Version(), nil
}
