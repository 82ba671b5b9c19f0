package relay_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/weegigs/wee-streams-go/relay"
	"github.com/weegigs/wee-streams-go/stores/memory"
	"github.com/weegigs/wee-streams-go/we"
)

type sink struct {
	mu        sync.Mutex
	failures  int
	published []we.Record
}

func (s *sink) Publish(_ context.Context, records []we.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures > 0 {
		s.failures--
		return assert.AnError
	}

	s.published = append(s.published, records...)
	return nil
}

func (s *sink) records() []we.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]we.Record(nil), s.published...)
}

func appendRecords(t *testing.T, db *memory.DB, n int) {
	root := we.NewAggregateIdentifier("test")
	err := db.InTx(context.Background(), func(ctx context.Context) error {
		for version := 0; version < n; version++ {
			id := root.WithVersion(int64(version))
			if err := db.Append(ctx, we.Record{Key: we.AggregateEventMessageKey{Aggregate: id, Root: root}}); err != nil {
				return err
			}
		}
		return nil
	})
	assert.Nil(t, err)
}

func TestRelay(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes pending records in batches and in order", func(t *testing.T) {
		db := memory.New()
		appendRecords(t, db, 5)
		target := &sink{}

		published, err := relay.New(db, db, target, relay.WithBatchSize(2)).Drain(ctx)
		if !assert.Nil(t, err) {
			return
		}

		assert.Equal(t, 5, published)
		records := target.records()
		if assert.Len(t, records, 5) {
			for i, record := range records {
				assert.Equal(t, int64(i+1), record.Position.Offset)
			}
		}

		published, err = relay.New(db, db, target).Drain(ctx)
		assert.Nil(t, err)
		assert.Zero(t, published)
	})

	t.Run("retries the sink", func(t *testing.T) {
		db := memory.New()
		appendRecords(t, db, 1)
		target := &sink{failures: 2}

		published, err := relay.New(db, db, target).Flush(ctx)
		assert.Nil(t, err)
		assert.Equal(t, 1, published)
	})

	t.Run("keeps records when publishing fails", func(t *testing.T) {
		db := memory.New()
		appendRecords(t, db, 2)
		target := &sink{failures: 100}

		_, err := relay.New(db, db, target, relay.WithPublishAttempts(2)).Flush(ctx)
		assert.ErrorIs(t, err, assert.AnError)

		target.failures = 0
		published, err := relay.New(db, db, target).Flush(ctx)
		assert.Nil(t, err)
		assert.Equal(t, 2, published)
	})

	t.Run("runs until cancelled", func(t *testing.T) {
		db := memory.New()
		target := &sink{}
		ctx, cancel := context.WithCancel(ctx)
		done := make(chan error)
		go func() { done <- relay.New(db, db, target, relay.WithInterval(10*time.Millisecond)).Run(ctx) }()

		appendRecords(t, db, 3)
		assert.Eventually(t, func() bool { return len(target.records()) == 3 }, time.Second, 5*time.Millisecond)

		cancel()
		assert.Nil(t, <-done)
	})
}
