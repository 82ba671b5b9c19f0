package businesstx_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weegigs/wee-streams-go/businesstx"
	"github.com/weegigs/wee-streams-go/stores/memory"
	"github.com/weegigs/wee-streams-go/we"
)

type recordingProcessor struct {
	name         string
	transactions []businesstx.Transaction
	fail         error
}

func (p *recordingProcessor) Name() string {
	return p.name
}

func (p *recordingProcessor) Process(_ context.Context, tx businesstx.Transaction) error {
	if p.fail != nil {
		return p.fail
	}
	p.transactions = append(p.transactions, tx)
	return nil
}

func marker(kind we.KeyKind, id we.TransactionID) we.Record {
	root := we.NewAggregateIdentifier("project")
	if kind == we.TransactionStartedKey {
		return we.Record{Key: we.BusinessTransactionStartedMessageKey{TransactionID: id, Root: root}}
	}

	return we.Record{Key: we.BusinessTransactionFinishedMessageKey{TransactionID: id, Root: root}}
}

func event(id we.TransactionID) we.Record {
	aggregate := we.NewAggregateIdentifier(taskAggregate).WithVersion(0)
	return we.Record{
		Key:   we.AggregateEventMessageKey{Aggregate: aggregate, Root: aggregate},
		Event: &we.Event{Aggregate: aggregate, Type: taskCreated, Payload: task{Name: "task"}, TransactionID: id},
	}
}

func consume(t *testing.T, listener *businesstx.Listener, records ...we.Record) {
	for _, record := range records {
		if !assert.Nil(t, listener.Handle(context.Background(), record)) {
			return
		}
	}
}

func TestConsumerManager(t *testing.T) {
	newListener := func(processor businesstx.Processor) (*memory.DB, *businesstx.Listener) {
		db := memory.New()
		return db, businesstx.NewListener(db, businesstx.NewConsumerManager(db), processor)
	}

	t.Run("delivers a bare event as a one record transaction", func(t *testing.T) {
		processor := &recordingProcessor{name: "bare"}
		_, listener := newListener(processor)

		consume(t, listener, event(""))

		if assert.Len(t, processor.transactions, 1) {
			assert.Empty(t, processor.transactions[0].ID)
			assert.Len(t, processor.transactions[0].Records, 1)
		}
	})

	t.Run("buffers until the finish marker", func(t *testing.T) {
		processor := &recordingProcessor{name: "buffering"}
		_, listener := newListener(processor)
		id := we.TransactionID("tx-1")

		consume(t, listener, marker(we.TransactionStartedKey, id), event(id), event(id))
		assert.Empty(t, processor.transactions)

		consume(t, listener, marker(we.TransactionFinishedKey, id))
		if assert.Len(t, processor.transactions, 1) {
			assert.Equal(t, id, processor.transactions[0].ID)
			assert.Len(t, processor.transactions[0].Records, 4)
			assert.Len(t, processor.transactions[0].Events(), 2)
		}
	})

	t.Run("ignores duplicate markers", func(t *testing.T) {
		processor := &recordingProcessor{name: "idempotent"}
		_, listener := newListener(processor)
		id := we.TransactionID("tx-2")

		consume(t, listener,
			marker(we.TransactionStartedKey, id),
			marker(we.TransactionStartedKey, id),
			event(id),
			marker(we.TransactionFinishedKey, id),
			marker(we.TransactionFinishedKey, id),
			marker(we.TransactionStartedKey, id),
		)

		if assert.Len(t, processor.transactions, 1) {
			assert.Len(t, processor.transactions[0].Records, 3)
		}
	})

	t.Run("keeps the buffer when processing fails", func(t *testing.T) {
		processor := &recordingProcessor{name: "failing", fail: assert.AnError}
		db, listener := newListener(processor)
		id := we.TransactionID("tx-3")

		consume(t, listener, marker(we.TransactionStartedKey, id), event(id))

		err := listener.Handle(context.Background(), marker(we.TransactionFinishedKey, id))
		assert.ErrorIs(t, err, assert.AnError)

		buffered, err := db.Buffered(context.Background(), id, "failing")
		assert.Nil(t, err)
		assert.Len(t, buffered, 2)

		processor.fail = nil
		consume(t, listener, marker(we.TransactionFinishedKey, id))
		assert.Len(t, processor.transactions, 1)
	})

	t.Run("buffers per processor", func(t *testing.T) {
		db := memory.New()
		manager := businesstx.NewConsumerManager(db)
		first := &recordingProcessor{name: "first"}
		second := &recordingProcessor{name: "second"}
		id := we.TransactionID("tx-4")

		consume(t, businesstx.NewListener(db, manager, first), marker(we.TransactionStartedKey, id), event(id), marker(we.TransactionFinishedKey, id))
		consume(t, businesstx.NewListener(db, manager, second), marker(we.TransactionStartedKey, id), event(id))

		assert.Len(t, first.transactions, 1)
		assert.Empty(t, second.transactions)
	})

	t.Run("rejects a finish without start", func(t *testing.T) {
		_, listener := newListener(&recordingProcessor{name: "orphan"})

		err := listener.Handle(context.Background(), marker(we.TransactionFinishedKey, "tx-5"))
		assert.ErrorIs(t, err, we.ErrTransactionInvariant)
	})

	t.Run("requires a storage transaction", func(t *testing.T) {
		manager := businesstx.NewConsumerManager(memory.New())

		err := manager.Process(context.Background(), event(""), &recordingProcessor{name: "outside"})
		assert.ErrorIs(t, err, we.ErrNoTransaction)
	})
}
