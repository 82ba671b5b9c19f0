package memory

import (
	"context"

	"github.com/weegigs/wee-streams-go/we"
)

type SnapshotRepository[S any] struct {
	db *DB
}

func NewSnapshotRepository[S any](db *DB) *SnapshotRepository[S] {
	return &SnapshotRepository[S]{db: db}
}

func snapshotTable(t we.AggregateType) string {
	return "snapshots:" + t.String()
}

func (r *SnapshotRepository[S]) load(id we.AggregateIdentifier) (we.Snapshot[S], bool) {
	row, ok := r.db.get(snapshotTable(id.Type), id.ID)
	if !ok {
		return we.Snapshot[S]{}, false
	}

	return row.(we.Snapshot[S]), true
}

func (r *SnapshotRepository[S]) Find(ctx context.Context, id we.AggregateIdentifier) (*we.Snapshot[S], error) {
	var found *we.Snapshot[S]
	r.db.view(ctx, func() {
		if snapshot, ok := r.load(id); ok {
			found = &snapshot
		}
	})

	return found, nil
}

func (r *SnapshotRepository[S]) Insert(ctx context.Context, snapshot we.Snapshot[S]) error {
	return r.db.write(ctx, func() error {
		if existing, ok := r.load(snapshot.Identifier); ok {
			return we.ConcurrencyConflict(snapshot.Identifier, we.InitialVersion, existing.Version())
		}

		r.db.put(snapshotTable(snapshot.Identifier.Type), snapshot.Identifier.ID, snapshot)
		return nil
	})
}

func (r *SnapshotRepository[S]) Update(ctx context.Context, snapshot we.Snapshot[S], expected int64) error {
	return r.db.write(ctx, func() error {
		existing, ok := r.load(snapshot.Identifier)
		if !ok {
			return we.NotFound(snapshot.Identifier)
		}

		if existing.Version() != expected {
			return we.ConcurrencyConflict(snapshot.Identifier, expected, existing.Version())
		}

		r.db.put(snapshotTable(snapshot.Identifier.Type), snapshot.Identifier.ID, snapshot)
		return nil
	})
}

func (r *SnapshotRepository[S]) Delete(ctx context.Context, id we.AggregateIdentifier, expected int64) error {
	return r.db.write(ctx, func() error {
		existing, ok := r.load(id)
		if !ok {
			return we.NotFound(id)
		}

		if existing.Version() != expected {
			return we.ConcurrencyConflict(id, expected, existing.Version())
		}

		r.db.remove(snapshotTable(id.Type), id.ID)
		return nil
	})
}
