package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weegigs/wee-streams-go/stores/memory"
	"github.com/weegigs/wee-streams-go/we"
)

func TestSnapshotRepository(t *testing.T) {
	ctx := context.Background()
	db := memory.New()

	suite := we.NewRepositoryValidationSuite(ctx, db, memory.NewSnapshotRepository[we.ValidationState](db))
	suite.Run(t)
}

func record(id we.AggregateIdentifier) we.Record {
	return we.Record{
		Key:   we.AggregateEventMessageKey{Aggregate: id, Root: id},
		Event: &we.Event{Aggregate: id, Type: "test:event"},
	}
}

func TestLog(t *testing.T) {
	ctx := context.Background()

	t.Run("discards records of a rolled back transaction", func(t *testing.T) {
		db := memory.New()
		id := we.NewAggregateIdentifier("test")

		err := db.InTx(ctx, func(ctx context.Context) error {
			return db.Append(ctx, record(id.WithVersion(0)))
		})
		if !assert.Nil(t, err) {
			return
		}

		err = db.InTx(ctx, func(ctx context.Context) error {
			if err := db.Append(ctx, record(id.WithVersion(1))); err != nil {
				return err
			}
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)

		records := db.Records()
		if assert.Len(t, records, 1) {
			assert.Equal(t, int64(1), records[0].Position.Offset)
		}
	})

	t.Run("tracks published records", func(t *testing.T) {
		db := memory.New()
		id := we.NewAggregateIdentifier("test")

		err := db.InTx(ctx, func(ctx context.Context) error {
			return db.Append(ctx, record(id.WithVersion(0)), record(id.WithVersion(1)), record(id.WithVersion(2)))
		})
		if !assert.Nil(t, err) {
			return
		}

		err = db.InTx(ctx, func(ctx context.Context) error {
			pending, err := db.Pending(ctx, 2)
			if err != nil {
				return err
			}
			assert.Len(t, pending, 2)
			return db.MarkPublished(ctx, pending[len(pending)-1].Position.Offset)
		})
		if !assert.Nil(t, err) {
			return
		}

		err = db.InTx(ctx, func(ctx context.Context) error {
			pending, err := db.Pending(ctx, 10)
			if err != nil {
				return err
			}
			if assert.Len(t, pending, 1) {
				assert.Equal(t, int64(3), pending[0].Position.Offset)
			}
			return nil
		})
		assert.Nil(t, err)
	})

	t.Run("joins an open transaction", func(t *testing.T) {
		db := memory.New()
		id := we.NewAggregateIdentifier("test")

		err := db.InTx(ctx, func(ctx context.Context) error {
			return db.InTx(ctx, func(ctx context.Context) error {
				return db.Append(ctx, record(id.WithVersion(0)))
			})
		})
		assert.Nil(t, err)
		assert.Len(t, db.Records(), 1)
	})
}

func TestBuffer(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	id := we.TransactionID("tx-1")
	aggregate := we.NewAggregateIdentifier("test")

	err := db.InTx(ctx, func(ctx context.Context) error {
		if err := db.Buffer(ctx, id, "projector", record(aggregate.WithVersion(0))); err != nil {
			return err
		}
		return db.Buffer(ctx, id, "projector", record(aggregate.WithVersion(1)))
	})
	if !assert.Nil(t, err) {
		return
	}

	buffered, err := db.Buffered(ctx, id, "projector")
	assert.Nil(t, err)
	assert.Len(t, buffered, 2)

	other, err := db.Buffered(ctx, id, "other")
	assert.Nil(t, err)
	assert.Empty(t, other)

	err = db.InTx(ctx, func(ctx context.Context) error {
		return db.Complete(ctx, id, "projector")
	})
	if !assert.Nil(t, err) {
		return
	}

	buffered, _ = db.Buffered(ctx, id, "projector")
	assert.Empty(t, buffered)

	completed, err := db.Completed(ctx, id, "projector")
	assert.Nil(t, err)
	assert.True(t, completed)
}
