package we_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weegigs/wee-streams-go/stores/memory"
	"github.com/weegigs/wee-streams-go/we"
)

func createsAtVersionZero(t *testing.T) {
	ctx := we.WithUser(context.Background(), "alice")
	f := newFixture()

	created := f.create(t, ctx)

	assert.Equal(t, int64(0), created.Version())
	assert.Equal(t, we.UserID("alice"), created.Audit.CreatedBy)

	stored, err := f.store.FindOrFail(ctx, created.Identifier.ID)
	if !assert.Nil(t, err) {
		return
	}
	assert.Equal(t, created.State, stored.State)
	assert.Equal(t, created.Identifier, stored.Identifier)
}

func incrementsVersionPerEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	snapshot := f.create(t, ctx)

	for i := 0; i < 5; i++ {
		next, err := f.view(ctx, snapshot, snapshot.Version())
		if !assert.Nil(t, err) {
			return
		}
		assert.Equal(t, snapshot.Version()+1, next.Version())
		snapshot = next
	}

	assert.Equal(t, 5, snapshot.State.Views)
	assert.Len(t, f.db.Records(), 6)
}

func rejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	snapshot := f.create(t, ctx)

	_, err := f.view(ctx, snapshot, snapshot.Version()+3)
	assert.ErrorIs(t, err, we.ErrConcurrencyConflict)

	var conflict *we.ConcurrencyConflictError
	if assert.ErrorAs(t, err, &conflict) {
		assert.Equal(t, int64(3), conflict.Expected)
		assert.Equal(t, int64(0), conflict.Actual)
	}

	stored, err := f.store.FindOrFail(ctx, snapshot.Identifier.ID)
	if !assert.Nil(t, err) {
		return
	}
	assert.Equal(t, snapshot.State, stored.State)
	assert.Equal(t, snapshot.Version(), stored.Version())
	assert.Len(t, f.db.Records(), 1)
}

func suppressesUnchangedSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	snapshot := f.create(t, ctx)

	err := f.db.InTx(ctx, func(ctx context.Context) error {
		result, err := we.Handle(snapshot).
			Update(func(n note) note { return n }).
			EmitEvent(noteRenamed).
			IfSnapshotWasChanged().
			To(ctx, f.bus)
		assert.Equal(t, snapshot, result)
		return err
	})
	if !assert.Nil(t, err) {
		return
	}

	assert.Len(t, f.db.Records(), 1)
}

type tally struct {
	Name string
	hits int
}

func comparesUnexportedFields(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	store := we.NewStore[tally]("tally", memory.NewSnapshotRepository[tally](db))
	bus := we.NewLocalEventBus(db, we.WithSnapshotStores(store))

	command := func(snapshot we.Snapshot[tally], update func(tally) tally) (result we.Snapshot[tally], err error) {
		err = db.InTx(ctx, func(ctx context.Context) error {
			result, err = we.Handle(snapshot).Update(update).EmitEvent("tally:counted").IfSnapshotWasChanged().To(ctx, bus)
			return err
		})
		return result, err
	}

	created, err := command(we.NewSnapshot(we.NewAggregateIdentifier("tally"), tally{}), func(s tally) tally {
		s.Name = "visits"
		s.hits = 1
		return s
	})
	if !assert.Nil(t, err) {
		return
	}

	assert.NotPanics(t, func() {
		unchanged, err := command(created, func(s tally) tally { return s })
		assert.Nil(t, err)
		assert.Equal(t, created.Version(), unchanged.Version())
	})
	assert.Len(t, db.Records(), 1)

	counted, err := command(created, func(s tally) tally {
		s.hits++
		return s
	})
	if assert.Nil(t, err) {
		assert.Equal(t, int64(1), counted.Version())
	}
	assert.Len(t, db.Records(), 2)
}

func emitsChangedSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	snapshot := f.create(t, ctx)

	err := f.db.InTx(ctx, func(ctx context.Context) error {
		result, err := we.Handle(snapshot).
			Update(func(n note) note {
				n.Title = "renamed"
				return n
			}).
			EmitEvent(noteRenamed).
			IfSnapshotWasChanged().
			To(ctx, f.bus)
		assert.Equal(t, int64(1), result.Version())
		return err
	})
	if !assert.Nil(t, err) {
		return
	}

	assert.Len(t, f.db.Records(), 2)
}

func failsPrecondition(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	snapshot := f.create(t, ctx)
	failure := assert.AnError

	err := f.db.InTx(ctx, func(ctx context.Context) error {
		_, err := we.Handle(snapshot).
			CheckPrecondition(func(n note) bool { return n.Views > 0 }, failure).
			Update(func(n note) note {
				n.Views = 100
				return n
			}).
			EmitEvent(noteViewed).
			To(ctx, f.bus)
		return err
	})
	assert.ErrorIs(t, err, failure)
	assert.Len(t, f.db.Records(), 1)
}

func deletesWithTombstone(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	snapshot := f.create(t, ctx)

	err := f.db.InTx(ctx, func(ctx context.Context) error {
		deleted, err := we.Handle(snapshot).EmitTombstone(noteDeleted).To(ctx, f.bus)
		assert.Equal(t, int64(1), deleted.Version())
		return err
	})
	if !assert.Nil(t, err) {
		return
	}

	_, err = f.store.FindOrFail(ctx, snapshot.Identifier.ID)
	assert.ErrorIs(t, err, we.ErrNotFound)

	records := f.db.Records()
	if assert.Len(t, records, 2) {
		assert.True(t, records[1].Event.IsTombstone())
		assert.Equal(t, noteDeleted, records[1].Event.Type)

		_, value, err := we.NewCodec().EncodeRecord(records[1])
		assert.Nil(t, err)
		assert.Nil(t, value)
	}
}

func rejectsSecondEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	snapshot := f.create(t, ctx)

	err := f.db.InTx(ctx, func(ctx context.Context) error {
		_, err := we.Handle(snapshot).EmitEvent(noteViewed).EmitTombstone(noteDeleted).To(ctx, f.bus)
		return err
	})
	assert.NotNil(t, err)
	assert.Len(t, f.db.Records(), 1)
}

func requiresStorageTransaction(t *testing.T) {
	f := newFixture()

	_, err := we.Handle(we.NewSnapshot(we.NewAggregateIdentifier(noteAggregate), note{})).
		EmitEvent(noteCreated).
		To(context.Background(), f.bus)
	assert.ErrorIs(t, err, we.ErrNoTransaction)
}

func TestCommandHandler(t *testing.T) {
	t.Run("creates at version zero", createsAtVersionZero)
	t.Run("increments the version by one per event", incrementsVersionPerEvent)
	t.Run("rejects a stale expected version without mutating", rejectsStaleVersion)
	t.Run("suppresses an unchanged snapshot", suppressesUnchangedSnapshot)
	t.Run("compares unexported state fields", comparesUnexportedFields)
	t.Run("emits a changed snapshot", emitsChangedSnapshot)
	t.Run("fails a precondition", failsPrecondition)
	t.Run("deletes with a tombstone", deletesWithTombstone)
	t.Run("rejects a second event", rejectsSecondEvent)
	t.Run("requires a storage transaction", requiresStorageTransaction)
}
