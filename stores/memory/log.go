package memory

import (
	"context"

	"github.com/weegigs/wee-streams-go/we"
)

const OutboxTopic = "outbox"

func (db *DB) Append(ctx context.Context, records ...we.Record) error {
	return db.write(ctx, func() error {
		for _, record := range records {
			record.Position = we.Position{Topic: OutboxTopic, Offset: int64(len(db.log)) + 1}
			db.log = append(db.log, record)
		}

		return nil
	})
}

// Records returns a copy of everything appended to the log.
func (db *DB) Records() []we.Record {
	db.mu.Lock()
	defer db.mu.Unlock()

	return append([]we.Record(nil), db.log...)
}

// Pending returns up to limit unpublished records. Their offsets are outbox
// sequence numbers.
func (db *DB) Pending(ctx context.Context, limit int) ([]we.Record, error) {
	var pending []we.Record
	err := db.write(ctx, func() error {
		for _, record := range db.log[db.published:] {
			if len(pending) == limit {
				break
			}
			pending = append(pending, record)
		}

		return nil
	})

	return pending, err
}

func (db *DB) MarkPublished(ctx context.Context, upTo int64) error {
	return db.write(ctx, func() error {
		if upTo > db.published {
			db.published = upTo
		}

		return nil
	})
}
