package we_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/weegigs/wee-streams-go/we"
)

func TestCodec(t *testing.T) {
	codec := we.NewCodec().RegisterAggregate(noteAggregate, we.DecoderFor[note]())
	id := we.NewAggregateIdentifier(noteAggregate).WithVersion(3)
	position := we.Position{Topic: "events", Partition: 2, Offset: 17}

	t.Run("decodes aggregate events into registered types", func(t *testing.T) {
		record := we.Record{
			Key: we.AggregateEventMessageKey{Aggregate: id, Root: id.WithVersion(0)},
			Event: &we.Event{
				ID:            we.NewEventID(time.Now()),
				Aggregate:     id,
				Type:          noteViewed,
				Payload:       note{Title: "codec", Views: 3},
				User:          "alice",
				Timestamp:     time.Now().UTC().Truncate(time.Millisecond),
				TransactionID: "tx-1",
			},
		}

		key, value, err := codec.EncodeRecord(record)
		if !assert.Nil(t, err) {
			return
		}

		decoded, err := codec.DecodeRecord(key, value, position)
		if !assert.Nil(t, err) {
			return
		}

		assert.Equal(t, record.Key, decoded.Key)
		assert.Equal(t, position, decoded.Position)
		assert.Equal(t, record.Event.Payload, decoded.Event.Payload)
		assert.Equal(t, we.TransactionID("tx-1"), decoded.TransactionID())
		assert.True(t, record.Event.Timestamp.Equal(decoded.Event.Timestamp))
	})

	t.Run("keeps tombstones empty", func(t *testing.T) {
		value, err := codec.EncodeEvent(nil)
		assert.Nil(t, err)
		assert.Nil(t, value)

		key, err := codec.EncodeKey(we.AggregateEventMessageKey{Aggregate: id, Root: id})
		if !assert.Nil(t, err) {
			return
		}

		decoded, err := codec.DecodeRecord(key, nil, position)
		if !assert.Nil(t, err) {
			return
		}

		_, event, ok := decoded.AggregateEvent()
		assert.True(t, ok)
		assert.True(t, event.IsTombstone())
		assert.Equal(t, id, event.Aggregate)
	})

	t.Run("writes tombstones as empty values", func(t *testing.T) {
		record := we.Record{
			Key: we.AggregateEventMessageKey{Aggregate: id, Root: id.WithVersion(0)},
			Event: &we.Event{
				ID:            we.NewEventID(time.Now()),
				Aggregate:     id,
				Type:          noteDeleted,
				Timestamp:     time.Now().UTC(),
				TransactionID: "tx-3",
			},
		}

		key, value, err := codec.EncodeRecord(record)
		if !assert.Nil(t, err) {
			return
		}
		assert.Nil(t, value)

		decoded, err := codec.DecodeRecord(key, value, position)
		if !assert.Nil(t, err) {
			return
		}

		assert.Equal(t, record.Key, decoded.Key)
		assert.True(t, decoded.Event.IsTombstone())
		assert.Equal(t, id, decoded.Event.Aggregate)
		assert.Equal(t, we.TransactionID("tx-3"), decoded.TransactionID())
	})

	t.Run("decodes marker keys", func(t *testing.T) {
		started := we.BusinessTransactionStartedMessageKey{TransactionID: "tx-2", Root: id}
		key, err := codec.EncodeKey(started)
		if !assert.Nil(t, err) {
			return
		}

		decoded, err := codec.DecodeKey(key)
		assert.Nil(t, err)
		assert.Equal(t, started, decoded)
	})

	t.Run("rejects unknown encodings", func(t *testing.T) {
		_, err := codec.DecodeEvent([]byte(`{"id":"x","type":"note:viewed","encoding":"application/avro","timestamp":"2024-01-01T00:00:00Z"}`))

		var invalid *we.InvalidEncodingError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestPartitionFor(t *testing.T) {
	root := we.NewAggregateIdentifier("project")

	partition := we.PartitionFor(root, 12)
	assert.GreaterOrEqual(t, partition, 0)
	assert.Less(t, partition, 12)
	assert.Equal(t, partition, we.PartitionFor(root.WithVersion(9), 12))
	assert.Equal(t, 0, we.PartitionFor(root, 1))
}
