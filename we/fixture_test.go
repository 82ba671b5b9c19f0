package we_test

import (
	"context"
	"testing"

	"github.com/jaswdr/faker"
	"github.com/stretchr/testify/require"

	"github.com/weegigs/wee-streams-go/stores/memory"
	"github.com/weegigs/wee-streams-go/we"
)

type note struct {
	Title string `json:"title"`
	Views int    `json:"views"`
}

const (
	noteAggregate we.AggregateType = "note"
	noteCreated   we.EventType     = "note:created"
	noteViewed    we.EventType     = "note:viewed"
	noteRenamed   we.EventType     = "note:renamed"
	noteDeleted   we.EventType     = "note:deleted"
)

type fixture struct {
	db    *memory.DB
	store *we.Store[note]
	bus   *we.LocalEventBus
	faker faker.Faker
}

func newFixture(options ...we.EventBusOption) *fixture {
	db := memory.New()
	store := we.NewStore[note](noteAggregate, memory.NewSnapshotRepository[note](db))
	options = append([]we.EventBusOption{we.WithSnapshotStores(store)}, options...)

	return &fixture{
		db:    db,
		store: store,
		bus:   we.NewLocalEventBus(db, options...),
		faker: faker.New(),
	}
}

func (f *fixture) create(t *testing.T, ctx context.Context) we.Snapshot[note] {
	var created we.Snapshot[note]
	err := f.db.InTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = we.Handle(we.NewSnapshot(we.NewAggregateIdentifier(noteAggregate), note{})).
			Update(func(n note) note {
				n.Title = f.faker.Lorem().Sentence(4)
				return n
			}).
			EmitEvent(noteCreated).
			To(ctx, f.bus)
		return err
	})
	require.NoError(t, err)

	return created
}

func (f *fixture) view(ctx context.Context, snapshot we.Snapshot[note], expected int64) (we.Snapshot[note], error) {
	var updated we.Snapshot[note]
	err := f.db.InTx(ctx, func(ctx context.Context) error {
		current, err := f.store.FindOrFail(ctx, snapshot.Identifier.ID)
		if err != nil {
			return err
		}

		updated, err = we.Handle(current).
			AssertVersionMatches(expected).
			Update(func(n note) note {
				n.Views++
				return n
			}).
			EmitEvent(noteViewed).
			To(ctx, f.bus)
		return err
	})

	return updated, err
}
