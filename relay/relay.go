package relay

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/weegigs/wee-streams-go/we"
)

const (
	DefaultInterval  = time.Second
	DefaultBatchSize = 100
)

// Outbox is the transactional side of the log. Pending and MarkPublished run
// inside the relay's storage transaction.
type Outbox interface {
	Pending(ctx context.Context, limit int) ([]we.Record, error)
	MarkPublished(ctx context.Context, upTo int64) error
}

// Sink is where published records go.
type Sink interface {
	Publish(ctx context.Context, records []we.Record) error
}

type Option func(*Relay)

func WithInterval(interval time.Duration) Option {
	return func(r *Relay) {
		r.interval = interval
	}
}

func WithBatchSize(size int) Option {
	return func(r *Relay) {
		r.batch = size
	}
}

func WithPublishAttempts(attempts uint) Option {
	return func(r *Relay) {
		r.attempts = attempts
	}
}

func WithLogger(logger *zerolog.Logger) Option {
	return func(r *Relay) {
		r.log = logger
	}
}

// Relay copies committed outbox records to a sink in append order. Delivery
// is at least once: a crash between publishing and marking republishes the
// batch.
type Relay struct {
	transactor we.Transactor
	outbox     Outbox
	sink       Sink
	interval   time.Duration
	batch      int
	attempts   uint
	log        *zerolog.Logger
}

func New(transactor we.Transactor, outbox Outbox, sink Sink, options ...Option) *Relay {
	r := &Relay{transactor: transactor, outbox: outbox, sink: sink}
	for _, option := range options {
		option(r)
	}

	if r.interval <= 0 {
		r.interval = DefaultInterval
	}

	if r.batch <= 0 {
		r.batch = DefaultBatchSize
	}

	if r.attempts == 0 {
		r.attempts = 5
	}

	if r.log == nil {
		r.log = &log.Logger
	}

	return r
}

// Run drains the outbox on every interval until ctx ends.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
			r.log.Err(err).Msg("relay failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Drain publishes batches until the outbox is empty.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		published, err := r.Flush(ctx)
		total += published
		if err != nil || published < r.batch {
			return total, err
		}
	}
}

// Flush publishes one batch and returns its size.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	published := 0
	err := r.transactor.InTx(ctx, func(ctx context.Context) error {
		pending, err := r.outbox.Pending(ctx, r.batch)
		if err != nil || len(pending) == 0 {
			return err
		}

		err = retry.Do(
			func() error { return r.sink.Publish(ctx, pending) },
			retry.Context(ctx),
			retry.Attempts(r.attempts),
			retry.Delay(50*time.Millisecond),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			return errors.Wrapf(err, "failed to publish %d records", len(pending))
		}

		published = len(pending)
		return r.outbox.MarkPublished(ctx, pending[len(pending)-1].Position.Offset)
	})
	if err != nil {
		return 0, err
	}

	if published > 0 {
		r.log.Debug().Int("records", published).Msg("records relayed")
	}

	return published, nil
}
