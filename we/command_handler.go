package we

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

// Emitter commits an aggregate event. LocalEventBus is the production
// implementation.
type Emitter interface {
	Emit(ctx context.Context, key AggregateEventMessageKey, event *Event) error
}

// CommandHandler stages the change a command makes to one snapshot and
// commits it as a single event. The first failing step short-circuits the
// rest; its error is returned by To.
type CommandHandler[S any] struct {
	original      Snapshot[S]
	candidate     Snapshot[S]
	eventType     EventType
	tombstone     bool
	onlyIfChanged bool
	err           error
}

// Handle starts a command on snapshot. Use NewSnapshot for aggregates that do
// not exist yet.
func Handle[S any](snapshot Snapshot[S]) *CommandHandler[S] {
	return &CommandHandler[S]{original: snapshot, candidate: snapshot}
}

// AssertVersionMatches fails with ErrConcurrencyConflict when the caller's
// expected version (ETag) differs from the snapshot version.
func (h *CommandHandler[S]) AssertVersionMatches(expected int64) *CommandHandler[S] {
	if h.err == nil && expected != h.original.Version() {
		h.err = ConcurrencyConflict(h.original.Identifier, expected, h.original.Version())
	}

	return h
}

func (h *CommandHandler[S]) CheckPrecondition(check func(state S) bool, failure error) *CommandHandler[S] {
	if h.err == nil && !check(h.candidate.State) {
		h.err = failure
	}

	return h
}

// Update replaces the candidate state with transform's result.
func (h *CommandHandler[S]) Update(transform func(state S) S) *CommandHandler[S] {
	if h.err == nil {
		h.candidate.State = transform(h.candidate.State)
	}

	return h
}

func (h *CommandHandler[S]) EmitEvent(eventType EventType) *CommandHandler[S] {
	if h.err == nil {
		h.stage(eventType, false)
	}

	return h
}

func (h *CommandHandler[S]) EmitTombstone(eventType EventType) *CommandHandler[S] {
	if h.err == nil {
		if !h.original.Exists() {
			h.err = NotFound(h.original.Identifier)
			return h
		}
		h.stage(eventType, true)
	}

	return h
}

func (h *CommandHandler[S]) stage(eventType EventType, tombstone bool) {
	if h.eventType != "" {
		h.err = errors.Errorf("command on %s already emits %s", h.original.Identifier.Encode(), h.eventType)
		return
	}

	h.eventType = eventType
	h.tombstone = tombstone
}

// IfSnapshotWasChanged drops the staged event when the candidate state equals
// the original state of an existing aggregate.
func (h *CommandHandler[S]) IfSnapshotWasChanged() *CommandHandler[S] {
	h.onlyIfChanged = true
	return h
}

// compareAll lets states with unexported fields be compared.
var compareAll = cmp.Exporter(func(reflect.Type) bool { return true })

func (h *CommandHandler[S]) changed() bool {
	return !h.original.Exists() || !cmp.Equal(h.original.State, h.candidate.State, compareAll)
}

// To commits the staged event through emitter and returns the new snapshot.
// A suppressed no-op returns the original snapshot unchanged.
func (h *CommandHandler[S]) To(ctx context.Context, emitter Emitter) (Snapshot[S], error) {
	if h.err != nil {
		return h.original, h.err
	}

	if h.eventType == "" {
		return h.original, errors.Errorf("command on %s stages no event", h.original.Identifier.Encode())
	}

	if h.onlyIfChanged && !h.tombstone && !h.changed() {
		return h.original, nil
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, fmt.Sprintf("command %s", h.eventType))
	defer span.End()

	next := h.original.Identifier.Next()
	event := &Event{Aggregate: next, Type: h.eventType}
	if !h.tombstone {
		event.Payload = h.candidate.State
	}

	key := AggregateEventMessageKey{Aggregate: next, Root: h.original.RootContext()}
	if err := emitter.Emit(ctx, key, event); err != nil {
		return h.original, err
	}

	result := h.candidate
	result.Identifier = next
	result.Root = key.Root
	result.Audit = h.original.Audit.Touch(event.User, event.Timestamp)

	return result, nil
}
