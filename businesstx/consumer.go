package businesstx

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/weegigs/wee-streams-go/we"
)

// Transaction is the unit handed to a Processor. A transaction read from the
// log holds its start marker, its events and its finish marker in log order.
// An event outside any business transaction arrives alone with an empty ID.
type Transaction struct {
	ID      we.TransactionID
	Records []we.Record
}

func (t Transaction) Events() []we.Record {
	events := make([]we.Record, 0, len(t.Records))
	for _, record := range t.Records {
		if record.Key.Kind() == we.AggregateEventKey {
			events = append(events, record)
		}
	}

	return events
}

type Processor interface {
	Name() string
	Process(ctx context.Context, tx Transaction) error
}

type processorFunc struct {
	name string
	fn   func(ctx context.Context, tx Transaction) error
}

func (p processorFunc) Name() string {
	return p.name
}

func (p processorFunc) Process(ctx context.Context, tx Transaction) error {
	return p.fn(ctx, tx)
}

func NewProcessor(name string, fn func(ctx context.Context, tx Transaction) error) Processor {
	return processorFunc{name: name, fn: fn}
}

// Buffer keeps the records of open business transactions per processor.
// Writes join the storage transaction in ctx.
type Buffer interface {
	Buffered(ctx context.Context, id we.TransactionID, processor string) ([]we.Record, error)
	Buffer(ctx context.Context, id we.TransactionID, processor string, record we.Record) error
	Complete(ctx context.Context, id we.TransactionID, processor string) error
	Completed(ctx context.Context, id we.TransactionID, processor string) (bool, error)
}

type ConsumerOption func(*ConsumerManager)

func WithConsumerLogger(logger *zerolog.Logger) ConsumerOption {
	return func(m *ConsumerManager) {
		m.log = logger
	}
}

// ConsumerManager reassembles business transactions from the log and hands
// each one to a processor exactly once.
type ConsumerManager struct {
	buffer Buffer
	log    *zerolog.Logger
}

func NewConsumerManager(buffer Buffer, options ...ConsumerOption) *ConsumerManager {
	m := &ConsumerManager{buffer: buffer}
	for _, option := range options {
		option(m)
	}

	if m.log == nil {
		m.log = &log.Logger
	}

	return m
}

func (m *ConsumerManager) Process(ctx context.Context, record we.Record, processor Processor) error {
	if err := we.RequireTransaction(ctx); err != nil {
		return err
	}

	name := processor.Name()

	switch key := record.Key.(type) {
	case we.BusinessTransactionStartedMessageKey:
		return m.started(ctx, key.TransactionID, record, name)
	case we.BusinessTransactionFinishedMessageKey:
		return m.finished(ctx, key.TransactionID, record, processor)
	}

	if id := record.TransactionID(); id != "" {
		return m.transactional(ctx, id, record, name)
	}

	return processor.Process(ctx, Transaction{Records: []we.Record{record}})
}

func (m *ConsumerManager) logger(id we.TransactionID, processor string) zerolog.Logger {
	return m.log.With().Str("transaction", id.String()).Str("processor", processor).Logger()
}

func (m *ConsumerManager) completed(ctx context.Context, id we.TransactionID, processor string) (bool, error) {
	completed, err := m.buffer.Completed(ctx, id, processor)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read completion of %s", id)
	}

	return completed, nil
}

func (m *ConsumerManager) buffered(ctx context.Context, id we.TransactionID, processor string) ([]we.Record, error) {
	records, err := m.buffer.Buffered(ctx, id, processor)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read buffer of %s", id)
	}

	return records, nil
}

func hasStart(records []we.Record) bool {
	for _, record := range records {
		if record.Key.Kind() == we.TransactionStartedKey {
			return true
		}
	}

	return false
}

func (m *ConsumerManager) started(ctx context.Context, id we.TransactionID, record we.Record, processor string) error {
	logger := m.logger(id, processor)

	completed, err := m.completed(ctx, id, processor)
	if err != nil {
		return err
	}

	if completed {
		logger.Debug().Msg("ignoring start of completed business transaction")
		return nil
	}

	records, err := m.buffered(ctx, id, processor)
	if err != nil {
		return err
	}

	if hasStart(records) {
		logger.Debug().Msg("ignoring duplicate start of business transaction")
		return nil
	}

	return m.buffer.Buffer(ctx, id, processor, record)
}

func (m *ConsumerManager) transactional(ctx context.Context, id we.TransactionID, record we.Record, processor string) error {
	logger := m.logger(id, processor)

	completed, err := m.completed(ctx, id, processor)
	if err != nil {
		return err
	}

	if completed {
		logger.Debug().Msg("ignoring event of completed business transaction")
		return nil
	}

	records, err := m.buffered(ctx, id, processor)
	if err != nil {
		return err
	}

	if !hasStart(records) {
		logger.Warn().Str("position", record.Position.String()).Msg("buffering event of business transaction without start")
	}

	return m.buffer.Buffer(ctx, id, processor, record)
}

func (m *ConsumerManager) finished(ctx context.Context, id we.TransactionID, record we.Record, processor Processor) error {
	logger := m.logger(id, processor.Name())

	completed, err := m.completed(ctx, id, processor.Name())
	if err != nil {
		return err
	}

	if completed {
		logger.Debug().Msg("ignoring duplicate finish of business transaction")
		return nil
	}

	records, err := m.buffered(ctx, id, processor.Name())
	if err != nil {
		return err
	}

	if !hasStart(records) {
		return we.TransactionInvariant("finish of " + id.String() + " without start")
	}

	tx := Transaction{ID: id, Records: append(records, record)}
	if err := processor.Process(ctx, tx); err != nil {
		return err
	}

	if err := m.buffer.Complete(ctx, id, processor.Name()); err != nil {
		return errors.Wrapf(err, "failed to complete %s", id)
	}

	logger.Debug().Int("records", len(tx.Records)).Msg("business transaction processed")
	return nil
}
