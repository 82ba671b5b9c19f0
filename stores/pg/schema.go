package pg

import (
	"context"

	"github.com/pkg/errors"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		aggregate_type   TEXT        NOT NULL,
		aggregate_id     TEXT        NOT NULL,
		version          BIGINT      NOT NULL,
		root_type        TEXT        NOT NULL,
		root_id          TEXT        NOT NULL,
		root_version     BIGINT      NOT NULL,
		created_by       TEXT        NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL,
		last_modified_by TEXT        NOT NULL,
		last_modified_at TIMESTAMPTZ NOT NULL,
		state            JSONB       NOT NULL,
		PRIMARY KEY (aggregate_type, aggregate_id)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		seq          BIGSERIAL PRIMARY KEY,
		message_key  JSONB       NOT NULL,
		value        JSONB,
		root         TEXT        NOT NULL,
		appended_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_pending ON outbox (seq) WHERE published_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS business_transaction_records (
		processor      TEXT   NOT NULL,
		transaction_id TEXT   NOT NULL,
		seq            BIGSERIAL,
		message_key    JSONB  NOT NULL,
		value          JSONB,
		topic          TEXT   NOT NULL,
		partition      INT    NOT NULL,
		log_offset     BIGINT NOT NULL,
		PRIMARY KEY (processor, transaction_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS business_transactions_completed (
		processor      TEXT        NOT NULL,
		transaction_id TEXT        NOT NULL,
		completed_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (processor, transaction_id)
	)`,
}

// Migrate creates the tables used by the repositories of this package.
func (db *DB) Migrate(ctx context.Context) error {
	for _, statement := range migrations {
		if _, err := db.pool.Exec(ctx, statement); err != nil {
			return errors.Wrap(err, "migration failed")
		}
	}

	db.log.Info().Int("statements", len(migrations)).Msg("schema migrated")
	return nil
}
