package we

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const JSONEncoding = "application/json"

type InvalidEncodingError struct {
	Expected string
	Actual   string
}

func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("expected encoding %s, got %s", e.Expected, e.Actual)
}

func InvalidEncoding(expected string, actual string) error {
	return &InvalidEncodingError{
		Expected: expected,
		Actual:   actual,
	}
}

// PayloadDecoder turns an encoded payload back into its Go value.
type PayloadDecoder func(data []byte) (any, error)

// DecoderFor decodes payloads into values of type T.
func DecoderFor[T any]() PayloadDecoder {
	return func(data []byte) (any, error) {
		var value T
		if err := json.Unmarshal(data, &value); err != nil {
			return nil, err
		}

		return value, nil
	}
}

type keyEnvelope struct {
	Kind        KeyKind              `json:"kind"`
	Aggregate   *AggregateIdentifier `json:"aggregate,omitempty"`
	Transaction TransactionID        `json:"transaction,omitempty"`
	Root        AggregateIdentifier  `json:"root"`
}

type eventEnvelope struct {
	ID          EventID             `json:"id"`
	Type        EventType           `json:"type"`
	Aggregate   AggregateIdentifier `json:"aggregate"`
	Transaction TransactionID       `json:"transaction,omitempty"`
	User        UserID              `json:"user,omitempty"`
	Timestamp   Timestamp           `json:"timestamp"`
	Encoding    string              `json:"encoding"`
	Payload     json.RawMessage     `json:"payload,omitempty"`
}

// Codec encodes records for the log. Payloads decode through the decoder
// registered for their event type, falling back to the one registered for
// their aggregate type and finally to raw JSON.
type Codec struct {
	events     map[EventType]PayloadDecoder
	aggregates map[AggregateType]PayloadDecoder
}

func NewCodec() *Codec {
	return &Codec{
		events:     map[EventType]PayloadDecoder{},
		aggregates: map[AggregateType]PayloadDecoder{},
	}
}

func (c *Codec) RegisterEvent(eventType EventType, decoder PayloadDecoder) *Codec {
	c.events[eventType] = decoder
	return c
}

func (c *Codec) RegisterAggregate(aggregateType AggregateType, decoder PayloadDecoder) *Codec {
	c.aggregates[aggregateType] = decoder
	return c
}

func (c *Codec) EncodeKey(key MessageKey) ([]byte, error) {
	return c.encodeKey(key, "")
}

// encodeKey writes transaction into aggregate keys. Tombstones carry no value,
// so their business transaction travels with the key.
func (c *Codec) encodeKey(key MessageKey, transaction TransactionID) ([]byte, error) {
	envelope := keyEnvelope{Kind: key.Kind(), Root: key.RootContextIdentifier()}

	switch k := key.(type) {
	case AggregateEventMessageKey:
		envelope.Aggregate = &k.Aggregate
		envelope.Transaction = transaction
	case BusinessTransactionStartedMessageKey:
		envelope.Transaction = k.TransactionID
	case BusinessTransactionFinishedMessageKey:
		envelope.Transaction = k.TransactionID
	default:
		return nil, errors.Errorf("unsupported message key %T", key)
	}

	return json.Marshal(envelope)
}

func (c *Codec) DecodeKey(data []byte) (MessageKey, error) {
	key, _, err := c.decodeKey(data)
	return key, err
}

func (c *Codec) decodeKey(data []byte) (MessageKey, TransactionID, error) {
	var envelope keyEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, "", errors.Wrap(err, "failed to decode message key")
	}

	switch envelope.Kind {
	case AggregateEventKey:
		if envelope.Aggregate == nil {
			return nil, "", errors.New("aggregate message key without aggregate")
		}
		return AggregateEventMessageKey{Aggregate: *envelope.Aggregate, Root: envelope.Root}, envelope.Transaction, nil
	case TransactionStartedKey:
		return BusinessTransactionStartedMessageKey{TransactionID: envelope.Transaction, Root: envelope.Root}, envelope.Transaction, nil
	case TransactionFinishedKey:
		return BusinessTransactionFinishedMessageKey{TransactionID: envelope.Transaction, Root: envelope.Root}, envelope.Transaction, nil
	default:
		return nil, "", errors.Errorf("unknown message key kind %q", envelope.Kind)
	}
}

// EncodeEvent returns nil for a nil event and for tombstones, which are
// empty values on the log.
func (c *Codec) EncodeEvent(event *Event) ([]byte, error) {
	if event == nil || event.IsTombstone() {
		return nil, nil
	}

	envelope := eventEnvelope{
		ID:          event.ID,
		Type:        event.Type,
		Aggregate:   event.Aggregate,
		Transaction: event.TransactionID,
		User:        event.User,
		Timestamp:   TimestampFromTime(event.Timestamp),
		Encoding:    JSONEncoding,
	}

	if event.Payload != nil {
		payload, err := json.Marshal(event.Payload)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode %s payload", event.Type)
		}
		envelope.Payload = payload
	}

	return json.Marshal(envelope)
}

// DecodeEvent returns nil for an empty value.
func (c *Codec) DecodeEvent(data []byte) (*Event, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errors.Wrap(err, "failed to decode event")
	}

	if envelope.Encoding != JSONEncoding {
		return nil, InvalidEncoding(JSONEncoding, envelope.Encoding)
	}

	timestamp, err := envelope.Timestamp.Time()
	if err != nil {
		return nil, errors.Wrapf(err, "invalid timestamp on %s", envelope.ID)
	}

	event := &Event{
		ID:            envelope.ID,
		Aggregate:     envelope.Aggregate,
		Type:          envelope.Type,
		User:          envelope.User,
		Timestamp:     timestamp,
		TransactionID: envelope.Transaction,
	}

	if len(envelope.Payload) == 0 || string(envelope.Payload) == "null" {
		return event, nil
	}

	decode := c.decoder(envelope.Type, envelope.Aggregate.Type)
	if decode == nil {
		event.Payload = envelope.Payload
		return event, nil
	}

	event.Payload, err = decode(envelope.Payload)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s payload", envelope.Type)
	}

	return event, nil
}

func (c *Codec) decoder(eventType EventType, aggregateType AggregateType) PayloadDecoder {
	if decode, ok := c.events[eventType]; ok {
		return decode
	}

	return c.aggregates[aggregateType]
}

func (c *Codec) EncodeRecord(record Record) (key []byte, value []byte, err error) {
	var transaction TransactionID
	if record.Event != nil && record.Event.IsTombstone() {
		transaction = record.Event.TransactionID
	}

	key, err = c.encodeKey(record.Key, transaction)
	if err != nil {
		return nil, nil, err
	}

	value, err = c.EncodeEvent(record.Event)
	if err != nil {
		return nil, nil, err
	}

	return key, value, nil
}

// DecodeRecord rebuilds the tombstone of an aggregate record with an empty
// value from its key.
func (c *Codec) DecodeRecord(key []byte, value []byte, position Position) (Record, error) {
	messageKey, transaction, err := c.decodeKey(key)
	if err != nil {
		return Record{}, err
	}

	event, err := c.DecodeEvent(value)
	if err != nil {
		return Record{}, err
	}

	if aggregate, ok := messageKey.(AggregateEventMessageKey); ok && event == nil {
		event = &Event{Aggregate: aggregate.Aggregate, TransactionID: transaction}
	}

	return Record{Key: messageKey, Event: event, Position: position}, nil
}
