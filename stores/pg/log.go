package pg

import (
	"context"

	"github.com/pkg/errors"

	"github.com/weegigs/wee-streams-go/we"
)

const OutboxTopic = "outbox"

// EventLog is the transactional outbox. Records appended inside a storage
// transaction become visible to the relay when it commits.
type EventLog struct {
	db    *DB
	codec *we.Codec
}

func NewEventLog(db *DB, codec *we.Codec) *EventLog {
	return &EventLog{db: db, codec: codec}
}

func (l *EventLog) Append(ctx context.Context, records ...we.Record) error {
	q, err := l.db.writer(ctx)
	if err != nil {
		return err
	}

	for _, record := range records {
		key, value, err := l.codec.EncodeRecord(record)
		if err != nil {
			return err
		}

		_, err = q.Exec(ctx,
			`INSERT INTO outbox (message_key, value, root) VALUES ($1, $2, $3)`,
			key, nullable(value), record.Key.RootContextIdentifier().Encode().String(),
		)
		if err != nil {
			return errors.Wrapf(err, "failed to append %s record", record.Key.Kind())
		}
	}

	return nil
}

// Pending locks and returns up to limit unpublished records in append order.
// Their offsets are outbox sequence numbers.
func (l *EventLog) Pending(ctx context.Context, limit int) ([]we.Record, error) {
	q, err := l.db.writer(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
SELECT seq, message_key, value
  FROM outbox
 WHERE published_at IS NULL
 ORDER BY seq
 LIMIT $1
   FOR UPDATE`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read pending records")
	}
	defer rows.Close()

	var records []we.Record
	for rows.Next() {
		var (
			seq        int64
			key, value []byte
		)
		if err := rows.Scan(&seq, &key, &value); err != nil {
			return nil, errors.Wrap(err, "failed to read pending record")
		}

		record, err := l.codec.DecodeRecord(key, value, we.Position{Topic: OutboxTopic, Offset: seq})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode outbox record %d", seq)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func (l *EventLog) MarkPublished(ctx context.Context, upTo int64) error {
	q, err := l.db.writer(ctx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `UPDATE outbox SET published_at = now() WHERE seq <= $1 AND published_at IS NULL`, upTo)
	return errors.Wrapf(err, "failed to mark records up to %d published", upTo)
}

func nullable(value []byte) any {
	if value == nil {
		return nil
	}

	return value
}
