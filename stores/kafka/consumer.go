package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"github.com/weegigs/wee-streams-go/restore"
	"github.com/weegigs/wee-streams-go/we"
)

const DefaultRedeliveryInterval = 5 * time.Second

// Handler receives one decoded record. A record whose acknowledgment is not
// called is not committed; returning an error redelivers it.
type Handler func(ctx context.Context, record we.Record, ack restore.Acknowledgment) error

type ConsumerOption func(*Consumer)

func WithRedeliveryInterval(interval time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.redelivery = interval
	}
}

func WithConsumerLogger(logger *zerolog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.log = logger
	}
}

// Consumer reads a consumer group's topics, handling partitions in parallel
// and the records of one partition in order. The client must be created with
// kgo.ConsumerGroup and kgo.AutoCommitMarks.
type Consumer struct {
	client     *kgo.Client
	codec      *we.Codec
	redelivery time.Duration
	log        *zerolog.Logger
}

func NewConsumer(client *kgo.Client, codec *we.Codec, options ...ConsumerOption) *Consumer {
	c := &Consumer{client: client, codec: codec}
	for _, option := range options {
		option(c)
	}

	if c.redelivery <= 0 {
		c.redelivery = DefaultRedeliveryInterval
	}

	if c.log == nil {
		c.log = &log.Logger
	}

	return c
}

// Run polls until ctx ends or a record ends the replay, then commits the
// acknowledged records.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	defer func() {
		if err := c.client.CommitMarkedOffsets(context.WithoutCancel(ctx)); err != nil {
			c.log.Err(err).Msg("final offset commit failed")
		}
	}()

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			c.log.Err(err).Str("topic", topic).Int32("partition", partition).Msg("fetch failed")
		})

		var postponed atomic.Bool
		group, groupCtx := errgroup.WithContext(ctx)
		fetches.EachPartition(func(partition kgo.FetchTopicPartition) {
			if len(partition.Records) == 0 {
				return
			}

			group.Go(func() error {
				rewound, err := c.partition(groupCtx, partition.Records, handler)
				if rewound {
					postponed.Store(true)
				}
				return err
			})
		})
		if err := group.Wait(); err != nil {
			return err
		}

		if postponed.Load() {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.redelivery):
			}
		}
	}
}

// partition handles records in order and rewinds the partition to the first
// record that fails, reporting whether it did. Errors that end the replay are
// returned without rewinding; the record stays uncommitted.
func (c *Consumer) partition(ctx context.Context, records []*kgo.Record, handler Handler) (bool, error) {
	for _, r := range records {
		err := c.handle(ctx, r, handler)
		if err == nil {
			continue
		}

		logger := c.log.With().Str("topic", r.Topic).Int32("partition", r.Partition).Int64("offset", r.Offset).Logger()
		switch {
		case restore.EndsReplay(err):
			logger.Err(err).Msg("record cannot be restored, stopping")
			return false, errors.Wrapf(err, "%s/%d@%d", r.Topic, r.Partition, r.Offset)
		case errors.Is(err, restore.ErrRestoreAheadOfOnline):
			logger.Debug().Msg("record postponed")
		default:
			logger.Err(err).Msg("record failed, redelivering")
		}

		c.client.SetOffsets(map[string]map[int32]kgo.EpochOffset{
			r.Topic: {r.Partition: {Epoch: r.LeaderEpoch, Offset: r.Offset}},
		})
		return true, nil
	}

	return false, nil
}

func (c *Consumer) handle(ctx context.Context, r *kgo.Record, handler Handler) error {
	record, err := c.codec.DecodeRecord(r.Key, r.Value, we.Position{Topic: r.Topic, Partition: r.Partition, Offset: r.Offset})
	if err != nil {
		return err
	}

	return handler(ctx, record, restore.AcknowledgmentFunc(func() {
		c.client.MarkCommitRecords(r)
	}))
}
