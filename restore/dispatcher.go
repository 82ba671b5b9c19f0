package restore

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/weegigs/wee-streams-go/we"
)

const tracerName = "wee-streams"

type DispatcherOption func(*StrategyDispatcher)

// WithExclusiveStrategies rejects records claimed by more than one strategy
// instead of handing them to each.
func WithExclusiveStrategies() DispatcherOption {
	return func(d *StrategyDispatcher) {
		d.exclusive = true
	}
}

func WithDispatcherLogger(logger *zerolog.Logger) DispatcherOption {
	return func(d *StrategyDispatcher) {
		d.log = logger
	}
}

func WithDispatcherMetrics(metrics *Metrics) DispatcherOption {
	return func(d *StrategyDispatcher) {
		d.metrics = metrics
	}
}

// StrategyDispatcher routes historical records to the restore strategies that
// claim them. A record nobody claims is a configuration error.
type StrategyDispatcher struct {
	transactor we.Transactor
	strategies []Strategy
	exclusive  bool
	log        *zerolog.Logger
	metrics    *Metrics
}

func NewStrategyDispatcher(transactor we.Transactor, strategies []Strategy, options ...DispatcherOption) *StrategyDispatcher {
	d := &StrategyDispatcher{transactor: transactor, strategies: strategies}
	for _, option := range options {
		option(d)
	}

	if d.log == nil {
		d.log = &log.Logger
	}

	return d
}

func (d *StrategyDispatcher) Dispatch(ctx context.Context, record we.Record) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, fmt.Sprintf("restore %s", record.Key.Kind()))
	defer span.End()
	span.SetAttributes(attribute.String("position", record.Position.String()))

	var matched []Strategy
	for _, strategy := range d.strategies {
		if strategy.CanHandle(record) {
			matched = append(matched, strategy)
		}
	}

	if len(matched) == 0 {
		return UnhandledRecord(record)
	}

	if len(matched) > 1 {
		names := make([]string, len(matched))
		for i, strategy := range matched {
			names[i] = strategy.Name()
		}

		if d.exclusive {
			return &AmbiguousRecordError{Position: record.Position, Strategies: names}
		}

		d.log.Debug().Strs("strategies", names).Str("position", record.Position.String()).Msg("record claimed by several strategies")
	}

	err := d.transactor.InTx(ctx, func(ctx context.Context) error {
		for _, strategy := range matched {
			if err := strategy.Handle(ctx, record); err != nil {
				return errors.Wrapf(err, "restore strategy %s failed at %s", strategy.Name(), record.Position)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	for _, strategy := range matched {
		d.metrics.recordApplied(strategy.Name())
	}

	return nil
}
