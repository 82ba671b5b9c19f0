package jetstream

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/weegigs/wee-streams-go/restore"
	"github.com/weegigs/wee-streams-go/we"
)

const DefaultRedeliveryInterval = 5 * time.Second

type Handler func(ctx context.Context, record we.Record, ack restore.Acknowledgment) error

// Consume delivers the stream to handler through the durable consumer
// durable. One message is in flight at a time so records arrive in stream
// order; a record that fails or is not acknowledged is redelivered after
// redelivery. A record that ends the replay stops the consumer with its error.
func (s *Stream) Consume(ctx context.Context, durable string, redelivery time.Duration, handler Handler) error {
	if redelivery <= 0 {
		redelivery = DefaultRedeliveryInterval
	}

	subscription, err := s.stream.PullSubscribe(
		prefix+">",
		durable,
		nats.BindStream(s.name),
		nats.AckExplicit(),
		nats.MaxAckPending(1),
		nats.DeliverAll(),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to subscribe %s to %s", durable, s.name)
	}
	defer func(subscription *nats.Subscription) {
		if err := subscription.Unsubscribe(); err != nil {
			s.log.Err(err).Msg("durable subscription failed to unsubscribe cleanly")
		}
	}(subscription)

	for ctx.Err() == nil {
		messages, err := subscription.Fetch(1, nats.MaxWait(time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			return errors.Wrapf(err, "fetch from %s failed", s.name)
		}

		for _, msg := range messages {
			if err := s.handle(ctx, msg, redelivery, handler); err != nil {
				return err
			}
		}
	}

	return nil
}

// handle returns the errors that end the replay. The message is nak'd so it
// is the first delivered to the next run.
func (s *Stream) handle(ctx context.Context, msg *nats.Msg, redelivery time.Duration, handler Handler) error {
	acknowledged := false
	record, err := s.decode(msg)
	if err == nil {
		err = handler(ctx, record, restore.AcknowledgmentFunc(func() {
			acknowledged = true
		}))
	}

	if err == nil && acknowledged {
		if err := msg.Ack(nats.Context(ctx)); err != nil {
			s.log.Err(err).Str("subject", msg.Subject).Msg("ack failed")
		}
		return nil
	}

	if restore.EndsReplay(err) {
		s.log.Err(err).Str("subject", msg.Subject).Msg("record cannot be restored, stopping")
		if err := msg.Nak(); err != nil {
			s.log.Err(err).Str("subject", msg.Subject).Msg("nak failed")
		}
		return errors.Wrapf(err, "%s@%d", s.name, record.Position.Offset)
	}

	if err != nil && !errors.Is(err, restore.ErrRestoreAheadOfOnline) {
		s.log.Err(err).Str("subject", msg.Subject).Msg("record failed, redelivering")
	}

	if err := msg.NakWithDelay(redelivery); err != nil {
		s.log.Err(err).Str("subject", msg.Subject).Msg("nak failed")
	}

	return nil
}
