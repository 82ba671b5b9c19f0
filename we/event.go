package we

import (
	"time"

	"github.com/weegigs/wee-streams-go/internal"
)

type EventID string

func (id EventID) String() string {
	return string(id)
}

type EventType string

func (et EventType) String() string {
	return string(et)
}

// EventTypeOf names a payload by its Go type unless it implements Named.
func EventTypeOf(payload any) EventType {
	return EventType(NameOf(payload))
}

type TransactionID string

func (id TransactionID) String() string {
	return string(id)
}

var ids = internal.NewULIDGenerator()

func NewEventID(t time.Time) EventID {
	return EventID(ids.New(t))
}

func NewTransactionID(t time.Time) TransactionID {
	return TransactionID(ids.New(t))
}

// Event is a fact about one aggregate version. The payload carries the full
// aggregate state after the event; a nil payload is a tombstone.
type Event struct {
	ID            EventID
	Aggregate     AggregateIdentifier
	Type          EventType
	Payload       any
	User          UserID
	Timestamp     time.Time
	TransactionID TransactionID
}

func (e *Event) Version() int64 {
	return e.Aggregate.Version
}

func (e *Event) IsTombstone() bool {
	return e.Payload == nil
}

func (e *Event) InTransaction() bool {
	return e.TransactionID != ""
}
