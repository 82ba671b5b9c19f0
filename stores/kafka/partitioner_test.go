package kafka_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/weegigs/wee-streams-go/stores/kafka"
	"github.com/weegigs/wee-streams-go/we"
)

func TestRootContextPartitioner(t *testing.T) {
	codec := we.NewCodec()
	sink := kafka.NewSink(nil, "events", codec)
	partitioner := kafka.RootContextPartitioner().ForTopic("events")

	root := we.NewAggregateIdentifier("order").WithVersion(0)
	child := we.NewAggregateIdentifier("line").WithVersion(3)

	records := []we.Record{
		{Key: we.BusinessTransactionStartedMessageKey{TransactionID: "tx", Root: root}},
		{Key: we.AggregateEventMessageKey{Aggregate: root, Root: root}, Event: &we.Event{Aggregate: root, Type: "order:placed"}},
		{Key: we.AggregateEventMessageKey{Aggregate: child, Root: root}},
		{Key: we.BusinessTransactionFinishedMessageKey{TransactionID: "tx", Root: root}},
	}

	expected := we.PartitionFor(root, 12)
	for _, record := range records {
		r, err := sink.Record(record)
		if !assert.Nil(t, err) {
			return
		}

		assert.Equal(t, "events", r.Topic)
		assert.Equal(t, expected, partitioner.Partition(r, 12), "%s", record.Key.Kind())
	}

	assert.True(t, partitioner.RequiresConsistency(&kgo.Record{}))
}

func TestRootContextPartitionerFallsBackToKey(t *testing.T) {
	partitioner := kafka.RootContextPartitioner().ForTopic("events")
	record := &kgo.Record{Key: []byte("plain-key")}

	first := partitioner.Partition(record, 6)
	assert.Equal(t, first, partitioner.Partition(record, 6))
	assert.GreaterOrEqual(t, first, 0)
	assert.Less(t, first, 6)
}
