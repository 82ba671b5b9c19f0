package jetstream

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/weegigs/wee-streams-go/we"
)

type Option func(*Stream)

func WithLogger(logger *zerolog.Logger) Option {
	return func(s *Stream) {
		s.log = logger
	}
}

const (
	prefix    = "records."
	keyHeader = "Wee-Key"
)

// Stream is a JetStream stream holding log records, one subject per root
// context.
type Stream struct {
	name    string
	manager nats.JetStreamManager
	stream  nats.JetStreamContext
	codec   *we.Codec
	log     *zerolog.Logger
}

func NewStream(name string, connection *nats.Conn, codec *we.Codec, options ...Option) (*Stream, error) {
	stream, err := connection.JetStream()
	if err != nil {
		return nil, errors.Wrap(err, "jetstream unavailable")
	}

	_, err = stream.AddStream(&nats.StreamConfig{
		Name:        name,
		Description: "record stream for " + name,
		Subjects:    []string{prefix + ">"},
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return nil, errors.Wrapf(err, "failed to create stream %s", name)
	}

	s := &Stream{
		name:    name,
		manager: stream,
		stream:  stream,
		codec:   codec,
	}

	for _, option := range options {
		option(s)
	}

	if s.log == nil {
		s.log = &log.Logger
	}

	return s, nil
}

func (s *Stream) Name() string {
	return s.name
}

func subject(root we.AggregateIdentifier) string {
	return prefix + root.Encode().String()
}

func (s *Stream) message(record we.Record) (*nats.Msg, error) {
	key, value, err := s.codec.EncodeRecord(record)
	if err != nil {
		return nil, err
	}

	msg := nats.NewMsg(subject(record.Key.RootContextIdentifier()))
	msg.Header.Set(keyHeader, string(key))
	msg.Data = value

	return msg, nil
}

// Publish appends records in order. Events are deduplicated by id within the
// stream's duplicate window.
func (s *Stream) Publish(ctx context.Context, records []we.Record) error {
	for _, record := range records {
		msg, err := s.message(record)
		if err != nil {
			return errors.Wrapf(err, "failed to encode record at %s", record.Position)
		}

		options := []nats.PubOpt{nats.Context(ctx)}
		if record.Event != nil && record.Event.ID != "" {
			options = append(options, nats.MsgId(record.Event.ID.String()))
		}

		if _, err := s.stream.PublishMsg(msg, options...); err != nil {
			return errors.Wrapf(err, "failed to publish to %s", s.name)
		}
	}

	return nil
}

func (s *Stream) decode(msg *nats.Msg) (we.Record, error) {
	metadata, err := msg.Metadata()
	if err != nil {
		return we.Record{}, err
	}

	position := we.Position{Topic: s.name, Offset: int64(metadata.Sequence.Stream)}
	return s.codec.DecodeRecord([]byte(msg.Header.Get(keyHeader)), msg.Data, position)
}
