package kafka

import (
	"context"

	"github.com/pkg/errors"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/weegigs/wee-streams-go/we"
)

type Topic string

// Sink publishes records to one topic, partitioned by root context.
type Sink struct {
	client *kgo.Client
	topic  string
	codec  *we.Codec
}

// NewSink expects a client created with RootContextPartitioner.
func NewSink(client *kgo.Client, topic Topic, codec *we.Codec) *Sink {
	return &Sink{client: client, topic: string(topic), codec: codec}
}

func (s *Sink) Record(record we.Record) (*kgo.Record, error) {
	key, value, err := s.codec.EncodeRecord(record)
	if err != nil {
		return nil, err
	}

	root := record.Key.RootContextIdentifier()
	return &kgo.Record{
		Topic: s.topic,
		Key:   key,
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: RootHeader, Value: []byte(root.ID)},
		},
	}, nil
}

// Publish writes records synchronously and in order.
func (s *Sink) Publish(ctx context.Context, records []we.Record) error {
	produced := make([]*kgo.Record, 0, len(records))
	for _, record := range records {
		r, err := s.Record(record)
		if err != nil {
			return errors.Wrapf(err, "failed to encode record at %s", record.Position)
		}
		produced = append(produced, r)
	}

	if err := s.client.ProduceSync(ctx, produced...).FirstErr(); err != nil {
		return errors.Wrapf(err, "failed to publish to %s", s.topic)
	}

	return nil
}
