package businesstx

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/weegigs/wee-streams-go/we"
)

type Propagation int

const (
	// Required joins the open business transaction or starts a new one.
	Required Propagation = iota
	// RequiresNew fails when a business transaction is already open.
	RequiresNew
)

func (p Propagation) String() string {
	if p == RequiresNew {
		return "requires-new"
	}

	return "required"
}

// MarkerEmitter appends business transaction markers to the log.
// we.LocalEventBus implements it.
type MarkerEmitter interface {
	EmitMarker(ctx context.Context, key we.MessageKey, event *we.Event) error
}

type ProducerOption func(*ProducerManager)

func WithProducerClock(clock we.Clock) ProducerOption {
	return func(m *ProducerManager) {
		m.clock = clock
	}
}

func WithProducerLogger(logger *zerolog.Logger) ProducerOption {
	return func(m *ProducerManager) {
		m.log = logger
	}
}

// ProducerManager groups the events emitted by nested operations into one
// business transaction, bracketed on the log by a start and a finish marker.
// All operations require the storage transaction in ctx.
type ProducerManager struct {
	emitter MarkerEmitter
	clock   we.Clock
	log     *zerolog.Logger
}

func NewProducerManager(emitter MarkerEmitter, options ...ProducerOption) *ProducerManager {
	m := &ProducerManager{emitter: emitter}
	for _, option := range options {
		option(m)
	}

	if m.clock == nil {
		m.clock = we.SystemClock
	}

	if m.log == nil {
		m.log = &log.Logger
	}

	return m
}

func (m *ProducerManager) newID() we.TransactionID {
	return we.NewTransactionID(m.clock.Now())
}

func (m *ProducerManager) StartTransaction(ctx context.Context, start StartedEvent, propagation Propagation) error {
	holder, err := we.BusinessTransactionHolderFrom(ctx)
	if err != nil {
		return err
	}

	if holder.IsActive() {
		if propagation == RequiresNew {
			return we.TransactionInvariant("a business transaction is already open")
		}

		joined := holder.Open(m.newID)
		m.log.Debug().Str("transaction", joined.TransactionID.String()).Int("depth", joined.NestingDepth).Msg("joined business transaction")
		return nil
	}

	current := holder.Open(m.newID)
	key := we.BusinessTransactionStartedMessageKey{TransactionID: current.TransactionID, Root: start.RootContextIdentifier()}
	if err := m.emitter.EmitMarker(ctx, key, m.marker(start, start.RootContextIdentifier(), current)); err != nil {
		_ = holder.Close()
		return err
	}

	m.log.Debug().Str("transaction", current.TransactionID.String()).Msg("business transaction started")
	return nil
}

// FinishTransaction leaves one nesting level. The finish marker is written
// only when the outermost level closes.
func (m *ProducerManager) FinishTransaction(ctx context.Context, finish FinishedEvent) error {
	holder, err := we.BusinessTransactionHolderFrom(ctx)
	if err != nil {
		return err
	}

	current, ok := holder.Current()
	if !ok {
		return we.TransactionInvariant("no business transaction to finish")
	}

	if current.NestingDepth == 1 {
		key := we.BusinessTransactionFinishedMessageKey{TransactionID: current.TransactionID, Root: finish.RootContextIdentifier()}
		err = m.emitter.EmitMarker(ctx, key, m.marker(finish, finish.RootContextIdentifier(), current))
	}

	if closeErr := holder.Close(); err == nil {
		err = closeErr
	}

	if err == nil && current.NestingDepth == 1 {
		m.log.Debug().Str("transaction", current.TransactionID.String()).Msg("business transaction finished")
	}

	return err
}

// DoInBusinessTransaction runs fn inside a business transaction joined with
// Required propagation. When fn fails or panics the level opened here is
// closed and no finish marker is written.
func (m *ProducerManager) DoInBusinessTransaction(ctx context.Context, start StartedEvent, finish FinishedEvent, fn func(ctx context.Context) error) error {
	if err := m.StartTransaction(ctx, start, Required); err != nil {
		return err
	}

	holder, err := we.BusinessTransactionHolderFrom(ctx)
	if err != nil {
		return err
	}

	finished := false
	defer func() {
		if !finished {
			if err := holder.Close(); err != nil {
				m.log.Err(err).Msg("failed to close business transaction")
			}
		}
	}()

	if err := fn(ctx); err != nil {
		return err
	}

	finished = true
	return m.FinishTransaction(ctx, finish)
}

func (m *ProducerManager) marker(payload any, root we.AggregateIdentifier, current we.BusinessTransactionContext) *we.Event {
	return &we.Event{
		Aggregate:     root,
		Type:          we.EventTypeOf(payload),
		Payload:       payload,
		TransactionID: current.TransactionID,
	}
}
