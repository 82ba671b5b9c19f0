package pg

import (
	"context"

	"github.com/pkg/errors"

	"github.com/weegigs/wee-streams-go/we"
)

// Buffer persists the records of open business transactions so a consumer
// can resume after a restart.
type Buffer struct {
	db    *DB
	codec *we.Codec
}

func NewBuffer(db *DB, codec *we.Codec) *Buffer {
	return &Buffer{db: db, codec: codec}
}

func (b *Buffer) Buffered(ctx context.Context, id we.TransactionID, processor string) ([]we.Record, error) {
	rows, err := b.db.reader(ctx).Query(ctx, `
SELECT message_key, value, topic, partition, log_offset
  FROM business_transaction_records
 WHERE processor = $1 AND transaction_id = $2
 ORDER BY seq`, processor, id.String())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read buffer of %s", id)
	}
	defer rows.Close()

	var records []we.Record
	for rows.Next() {
		var (
			key, value []byte
			position   we.Position
		)
		if err := rows.Scan(&key, &value, &position.Topic, &position.Partition, &position.Offset); err != nil {
			return nil, errors.Wrapf(err, "failed to read buffer of %s", id)
		}

		record, err := b.codec.DecodeRecord(key, value, position)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func (b *Buffer) Buffer(ctx context.Context, id we.TransactionID, processor string, record we.Record) error {
	q, err := b.db.writer(ctx)
	if err != nil {
		return err
	}

	key, value, err := b.codec.EncodeRecord(record)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
INSERT INTO business_transaction_records (processor, transaction_id, message_key, value, topic, partition, log_offset)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		processor, id.String(), key, nullable(value),
		record.Position.Topic, record.Position.Partition, record.Position.Offset,
	)

	return errors.Wrapf(err, "failed to buffer record of %s", id)
}

func (b *Buffer) Complete(ctx context.Context, id we.TransactionID, processor string) error {
	q, err := b.db.writer(ctx)
	if err != nil {
		return err
	}

	if _, err := q.Exec(ctx,
		`DELETE FROM business_transaction_records WHERE processor = $1 AND transaction_id = $2`,
		processor, id.String(),
	); err != nil {
		return errors.Wrapf(err, "failed to clear buffer of %s", id)
	}

	_, err = q.Exec(ctx, `
INSERT INTO business_transactions_completed (processor, transaction_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`, processor, id.String())

	return errors.Wrapf(err, "failed to complete %s", id)
}

func (b *Buffer) Completed(ctx context.Context, id we.TransactionID, processor string) (bool, error) {
	var completed bool
	err := b.db.reader(ctx).QueryRow(ctx, `
SELECT EXISTS (
  SELECT 1 FROM business_transactions_completed WHERE processor = $1 AND transaction_id = $2
)`, processor, id.String()).Scan(&completed)

	return completed, errors.Wrapf(err, "failed to read completion of %s", id)
}
