package businesstx_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weegigs/wee-streams-go/businesstx"
	"github.com/weegigs/wee-streams-go/stores/memory"
	"github.com/weegigs/wee-streams-go/we"
)

type task struct {
	Name string `json:"name"`
}

const (
	taskAggregate we.AggregateType = "task"
	taskCreated   we.EventType     = "task:created"
)

type fixture struct {
	db       *memory.DB
	bus      *we.LocalEventBus
	producer *businesstx.ProducerManager
	root     we.AggregateIdentifier
}

func newFixture() *fixture {
	db := memory.New()
	store := we.NewStore[task](taskAggregate, memory.NewSnapshotRepository[task](db))
	bus := we.NewLocalEventBus(db, we.WithSnapshotStores(store))

	return &fixture{
		db:       db,
		bus:      bus,
		producer: businesstx.NewProducerManager(bus),
		root:     we.NewAggregateIdentifier("project").WithVersion(0),
	}
}

func (f *fixture) started() businesstx.StartedEvent {
	return businesstx.BatchOperationStarted{Root: f.root, Operation: "import"}
}

func (f *fixture) finished() businesstx.FinishedEvent {
	return businesstx.BatchOperationFinished{Root: f.root, Operation: "import"}
}

func (f *fixture) createTask(ctx context.Context, name string) error {
	snapshot := we.NewSnapshot(we.NewAggregateIdentifier(taskAggregate), task{Name: name}).WithRoot(f.root)
	_, err := we.Handle(snapshot).EmitEvent(taskCreated).To(ctx, f.bus)
	return err
}

func (f *fixture) kinds(t *testing.T) []we.KeyKind {
	records := f.db.Records()
	kinds := make([]we.KeyKind, len(records))
	for i, record := range records {
		require.NotNil(t, record.Key)
		kinds[i] = record.Key.Kind()
	}

	return kinds
}
