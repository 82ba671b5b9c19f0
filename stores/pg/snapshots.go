package pg

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/weegigs/wee-streams-go/we"
)

// SnapshotRepository keeps snapshots of one aggregate type in the snapshots
// table with their state as JSONB.
type SnapshotRepository[S any] struct {
	db *DB
}

func NewSnapshotRepository[S any](db *DB) *SnapshotRepository[S] {
	return &SnapshotRepository[S]{db: db}
}

const selectSnapshot = `
SELECT version, root_type, root_id, root_version,
       created_by, created_at, last_modified_by, last_modified_at, state
  FROM snapshots
 WHERE aggregate_type = $1 AND aggregate_id = $2`

// Find locks the row when called inside a transaction so that the version
// read is the version the following write compares against.
func (r *SnapshotRepository[S]) Find(ctx context.Context, id we.AggregateIdentifier) (*we.Snapshot[S], error) {
	query := selectSnapshot
	if _, ok := r.db.tx(ctx); ok {
		query += " FOR UPDATE"
	}

	var (
		version, rootVersion int64
		rootType, rootID     string
		audit                we.Audit
		createdBy, modBy     string
		state                []byte
	)

	err := r.db.reader(ctx).QueryRow(ctx, query, id.Type.String(), id.ID).Scan(
		&version, &rootType, &rootID, &rootVersion,
		&createdBy, &audit.CreatedAt, &modBy, &audit.LastModifiedAt, &state,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", id.Encode())
	}

	snapshot := &we.Snapshot[S]{
		Identifier: id.WithVersion(version),
		Root:       we.AggregateIdentifier{Type: we.AggregateType(rootType), ID: rootID, Version: rootVersion},
		Audit:      audit,
	}
	snapshot.Audit.CreatedBy = we.UserID(createdBy)
	snapshot.Audit.LastModifiedBy = we.UserID(modBy)
	snapshot.Audit.CreatedAt = snapshot.Audit.CreatedAt.UTC()
	snapshot.Audit.LastModifiedAt = snapshot.Audit.LastModifiedAt.UTC()

	if err := json.Unmarshal(state, &snapshot.State); err != nil {
		return nil, errors.Wrapf(err, "failed to decode state of %s", id.Encode())
	}

	return snapshot, nil
}

func (r *SnapshotRepository[S]) Insert(ctx context.Context, snapshot we.Snapshot[S]) error {
	q, err := r.db.writer(ctx)
	if err != nil {
		return err
	}

	state, err := json.Marshal(snapshot.State)
	if err != nil {
		return errors.Wrapf(err, "failed to encode state of %s", snapshot.Identifier.Encode())
	}

	id, root := snapshot.Identifier, snapshot.RootContext()
	tag, err := q.Exec(ctx, `
INSERT INTO snapshots (aggregate_type, aggregate_id, version, root_type, root_id, root_version,
                       created_by, created_at, last_modified_by, last_modified_at, state)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (aggregate_type, aggregate_id) DO NOTHING`,
		id.Type.String(), id.ID, id.Version, root.Type.String(), root.ID, root.Version,
		string(snapshot.Audit.CreatedBy), utc(snapshot.Audit.CreatedAt),
		string(snapshot.Audit.LastModifiedBy), utc(snapshot.Audit.LastModifiedAt), state,
	)
	if err != nil {
		return classify(errors.Wrapf(err, "failed to insert %s", id.Encode()))
	}

	if tag.RowsAffected() == 0 {
		return r.conflict(ctx, q, id, we.InitialVersion)
	}

	return nil
}

func (r *SnapshotRepository[S]) Update(ctx context.Context, snapshot we.Snapshot[S], expected int64) error {
	q, err := r.db.writer(ctx)
	if err != nil {
		return err
	}

	state, err := json.Marshal(snapshot.State)
	if err != nil {
		return errors.Wrapf(err, "failed to encode state of %s", snapshot.Identifier.Encode())
	}

	id := snapshot.Identifier
	tag, err := q.Exec(ctx, `
UPDATE snapshots
   SET version = $3, last_modified_by = $4, last_modified_at = $5, state = $6
 WHERE aggregate_type = $1 AND aggregate_id = $2 AND version = $7`,
		id.Type.String(), id.ID, id.Version,
		string(snapshot.Audit.LastModifiedBy), utc(snapshot.Audit.LastModifiedAt), state, expected,
	)
	if err != nil {
		return classify(errors.Wrapf(err, "failed to update %s", id.Encode()))
	}

	if tag.RowsAffected() == 0 {
		return r.conflict(ctx, q, id, expected)
	}

	return nil
}

func (r *SnapshotRepository[S]) Delete(ctx context.Context, id we.AggregateIdentifier, expected int64) error {
	q, err := r.db.writer(ctx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx,
		`DELETE FROM snapshots WHERE aggregate_type = $1 AND aggregate_id = $2 AND version = $3`,
		id.Type.String(), id.ID, expected,
	)
	if err != nil {
		return classify(errors.Wrapf(err, "failed to delete %s", id.Encode()))
	}

	if tag.RowsAffected() == 0 {
		return r.conflict(ctx, q, id, expected)
	}

	return nil
}

// conflict reports why a guarded write touched no row.
func (r *SnapshotRepository[S]) conflict(ctx context.Context, q querier, id we.AggregateIdentifier, expected int64) error {
	var actual int64
	err := q.QueryRow(ctx,
		`SELECT version FROM snapshots WHERE aggregate_type = $1 AND aggregate_id = $2`,
		id.Type.String(), id.ID,
	).Scan(&actual)

	switch {
	case errors.Is(err, pgx.ErrNoRows) && expected == we.InitialVersion:
		return we.ConcurrencyConflict(id, expected, we.InitialVersion)
	case errors.Is(err, pgx.ErrNoRows):
		return we.NotFound(id)
	case err != nil:
		return errors.Wrapf(err, "failed to read version of %s", id.Encode())
	default:
		return we.ConcurrencyConflict(id, expected, actual)
	}
}

func utc(t time.Time) time.Time {
	return t.UTC()
}
