package memory

import (
	"context"

	"github.com/weegigs/wee-streams-go/we"
)

const (
	bufferedTable  = "business-transactions:buffered"
	completedTable = "business-transactions:completed"
)

func bufferKey(id we.TransactionID, processor string) string {
	return processor + "/" + id.String()
}

func (db *DB) Buffered(ctx context.Context, id we.TransactionID, processor string) ([]we.Record, error) {
	var records []we.Record
	db.view(ctx, func() {
		if row, ok := db.get(bufferedTable, bufferKey(id, processor)); ok {
			records = append(records, row.([]we.Record)...)
		}
	})

	return records, nil
}

func (db *DB) Buffer(ctx context.Context, id we.TransactionID, processor string, record we.Record) error {
	return db.write(ctx, func() error {
		key := bufferKey(id, processor)

		var records []we.Record
		if row, ok := db.get(bufferedTable, key); ok {
			records = row.([]we.Record)
		}

		// rows are shared with saved transaction state and must not be mutated
		updated := make([]we.Record, 0, len(records)+1)
		updated = append(updated, records...)
		db.put(bufferedTable, key, append(updated, record))

		return nil
	})
}

func (db *DB) Complete(ctx context.Context, id we.TransactionID, processor string) error {
	return db.write(ctx, func() error {
		key := bufferKey(id, processor)
		db.remove(bufferedTable, key)
		db.put(completedTable, key, true)

		return nil
	})
}

func (db *DB) Completed(ctx context.Context, id we.TransactionID, processor string) (bool, error) {
	var completed bool
	db.view(ctx, func() {
		_, completed = db.get(completedTable, bufferKey(id, processor))
	})

	return completed, nil
}
