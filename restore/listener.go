package restore

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/weegigs/wee-streams-go/we"
)

// Acknowledgment confirms a record so the broker does not deliver it again.
type Acknowledgment interface {
	Acknowledge()
}

type AcknowledgmentFunc func()

func (f AcknowledgmentFunc) Acknowledge() {
	f()
}

type ListenerOption func(*Listener)

func WithListenerLogger(logger *zerolog.Logger) ListenerOption {
	return func(l *Listener) {
		l.log = logger
	}
}

func WithListenerMetrics(metrics *Metrics) ListenerOption {
	return func(l *Listener) {
		l.metrics = metrics
	}
}

// Listener applies historical records once the online service has processed
// them and postpones the rest.
type Listener struct {
	offsets    OffsetView
	dispatcher *StrategyDispatcher
	log        *zerolog.Logger
	metrics    *Metrics
}

func NewListener(offsets OffsetView, dispatcher *StrategyDispatcher, options ...ListenerOption) *Listener {
	l := &Listener{offsets: offsets, dispatcher: dispatcher}
	for _, option := range options {
		option(l)
	}

	if l.log == nil {
		l.log = &log.Logger
	}

	return l
}

// CaughtUp fails with ErrRestoreAheadOfOnline unless the online service has
// processed the record's position.
func (l *Listener) CaughtUp(position we.Position) error {
	online, ok := l.offsets.MaxTopicPartitionOffset(position.Topic, position.Partition)
	if !ok || position.Offset > online {
		return RestoreAheadOfOnline(position, online, ok)
	}

	return nil
}

// Listen acknowledges the record only after it has been restored.
func (l *Listener) Listen(ctx context.Context, record we.Record, ack Acknowledgment) error {
	if err := l.CaughtUp(record.Position); err != nil {
		l.metrics.recordPostponed(record.Position.Topic)
		l.log.Debug().Str("position", record.Position.String()).Msg("postponing record until the online service catches up")
		return err
	}

	if err := l.dispatcher.Dispatch(ctx, record); err != nil {
		return err
	}

	ack.Acknowledge()
	return nil
}
