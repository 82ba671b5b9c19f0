package jetstream_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/weegigs/wee-streams-go/restore"
	"github.com/weegigs/wee-streams-go/stores/jetstream"
	"github.com/weegigs/wee-streams-go/we"
)

func TestStream(t *testing.T) {
	ctx := context.Background()
	codec := we.NewCodec()
	stream, cleanup, err := jetstream.NewTestStream(ctx, codec)
	if err != nil {
		t.Skipf("skip: cannot start nats: %v", err)
	}
	defer cleanup()

	root := we.NewAggregateIdentifier("order").WithVersion(0)
	var records []we.Record
	for version := int64(0); version < 3; version++ {
		id := root.WithVersion(version)
		records = append(records, we.Record{
			Key: we.AggregateEventMessageKey{Aggregate: id, Root: root},
			Event: &we.Event{
				ID:        we.NewEventID(time.Now()),
				Aggregate: id,
				Type:      "order:changed",
				Timestamp: time.Now().UTC(),
			},
		})
	}

	if !assert.Nil(t, stream.Publish(ctx, records)) {
		return
	}

	t.Run("duplicate events are dropped", func(t *testing.T) {
		assert.Nil(t, stream.Publish(ctx, records[2:]))
	})

	t.Run("consumes in order and reports the ack floor", func(t *testing.T) {
		var (
			seen  []we.Record
			count int32
		)

		ctx, cancel := context.WithCancel(ctx)
		done := make(chan error)
		go func() {
			done <- stream.Consume(ctx, "online", 100*time.Millisecond, func(_ context.Context, record we.Record, ack restore.Acknowledgment) error {
				if record.Position.Offset == 2 && atomic.AddInt32(&count, 1) == 1 {
					return restore.RestoreAheadOfOnline(record.Position, 1, true)
				}

				seen = append(seen, record)
				ack.Acknowledge()
				return nil
			})
		}()

		assert.Eventually(t, func() bool {
			offsets, err := stream.ProcessedOffsets(ctx, "online")
			return err == nil && offsets[stream.Name()][0] == 3
		}, 10*time.Second, 50*time.Millisecond)
		cancel()
		assert.Nil(t, <-done)

		if assert.Len(t, seen, 3) {
			for i, record := range seen {
				assert.Equal(t, int64(i+1), record.Position.Offset)
				assert.Equal(t, records[i].Event.ID, record.Event.ID)
			}
		}
	})

	t.Run("unclaimed records stop the consumer", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		err := stream.Consume(ctx, "unclaimed", 100*time.Millisecond, func(_ context.Context, record we.Record, _ restore.Acknowledgment) error {
			return restore.UnhandledRecord(record)
		})
		assert.ErrorIs(t, err, restore.ErrUnhandledRecord)
	})
}
