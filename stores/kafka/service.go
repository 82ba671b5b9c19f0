package kafka

import (
	"github.com/google/wire"
	"github.com/pkg/errors"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/weegigs/wee-streams-go/restore"
)

type Brokers []string

type Group string

// Live provides the producer side. Consumers need a client of their own and
// are built with ConsumerClient.
var Live = wire.NewSet(
	ProducerClient,
	AdminClient,
	NewSink,
	NewOffsetSource,
	wire.Bind(new(restore.OffsetSource), new(*OffsetSource)),
)

// ProducerClient builds the client used by the Sink.
func ProducerClient(brokers Brokers) (*kgo.Client, func(), error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RecordPartitioner(RootContextPartitioner()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create kafka producer")
	}

	return client, client.Close, nil
}

// ConsumerClient builds a group consumer that commits only acknowledged
// records.
func ConsumerClient(brokers Brokers, group Group, topics ...string) (*kgo.Client, func(), error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(string(group)),
		kgo.ConsumeTopics(topics...),
		kgo.AutoCommitMarks(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create kafka consumer")
	}

	return client, client.Close, nil
}

func AdminClient(client *kgo.Client) *kadm.Client {
	return kadm.NewClient(client)
}
