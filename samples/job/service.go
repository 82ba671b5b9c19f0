package job

import (
	"context"

	"github.com/pkg/errors"

	"github.com/weegigs/wee-streams-go/businesstx"
	"github.com/weegigs/wee-streams-go/we"
)

// ErrResultUnavailable is returned when reading the result of a job that has
// not completed.
var ErrResultUnavailable = errors.Wrap(we.ErrInvalidStateTransition, "job has no result")

type Request struct {
	Type    string            `json:"type"`
	Context map[string]string `json:"context,omitempty"`
}

// Service executes job commands, each in its own storage transaction.
type Service struct {
	transactor we.Transactor
	bus        we.Emitter
	store      *we.Store[Job]
	producer   *businesstx.ProducerManager
}

func NewService(transactor we.Transactor, bus *we.LocalEventBus, store *we.Store[Job]) *Service {
	return &Service{
		transactor: transactor,
		bus:        bus,
		store:      store,
		producer:   businesstx.NewProducerManager(bus, businesstx.WithProducerClock(bus.Clock())),
	}
}

func (s *Service) Store() *we.Store[Job] {
	return s.store
}

func (s *Service) create(ctx context.Context, id we.AggregateIdentifier, state Job, eventType we.EventType) (we.Snapshot[Job], error) {
	state.Owner = we.UserFrom(ctx)
	snapshot := we.NewSnapshot(id, state)
	if root, ok := ctx.Value(batchRootKey{}).(we.AggregateIdentifier); ok {
		snapshot = snapshot.WithRoot(root)
	}

	return we.Handle(snapshot).EmitEvent(eventType).To(ctx, s.bus)
}

func (s *Service) Queue(ctx context.Context, request Request) (result we.Snapshot[Job], err error) {
	err = s.transactor.InTx(ctx, func(ctx context.Context) error {
		result, err = s.create(ctx, we.NewAggregateIdentifier(Aggregate), Job{Type: request.Type, Context: request.Context, Status: Queued}, QueuedEvent)
		return err
	})

	return result, err
}

func (s *Service) Reject(ctx context.Context, request Request, reason string) (result we.Snapshot[Job], err error) {
	err = s.transactor.InTx(ctx, func(ctx context.Context) error {
		state := Job{Type: request.Type, Context: request.Context, Status: Rejected, Reason: reason}
		result, err = s.create(ctx, we.NewAggregateIdentifier(Aggregate), state, RejectedEvent)
		return err
	})

	return result, err
}

type batchRootKey struct{}

// QueueBatch queues every request inside one business transaction rooted at
// a new batch identifier. Consumers see the batch as a single unit.
func (s *Service) QueueBatch(ctx context.Context, requests []Request) (we.AggregateIdentifier, []we.Snapshot[Job], error) {
	root := we.NewAggregateIdentifier("job-batch").WithVersion(0)
	started := businesstx.BatchOperationStarted{Root: root, Operation: "queue-jobs"}
	finished := businesstx.BatchOperationFinished{Root: root, Operation: "queue-jobs"}

	var jobs []we.Snapshot[Job]
	err := s.transactor.InTx(ctx, func(ctx context.Context) error {
		jobs = make([]we.Snapshot[Job], 0, len(requests))
		return s.producer.DoInBusinessTransaction(ctx, started, finished, func(ctx context.Context) error {
			ctx = context.WithValue(ctx, batchRootKey{}, root)
			for _, request := range requests {
				job, err := s.create(ctx, we.NewAggregateIdentifier(Aggregate), Job{Type: request.Type, Context: request.Context, Status: Queued}, QueuedEvent)
				if err != nil {
					return err
				}
				jobs = append(jobs, job)
			}
			return nil
		})
	})
	if err != nil {
		return we.AggregateIdentifier{}, nil, err
	}

	return root, jobs, nil
}

// execute loads the job, applies command and commits the result. Expected is
// the caller's version, nil to skip the check.
func (s *Service) execute(ctx context.Context, id string, expected *int64, command func(handler *we.CommandHandler[Job]) *we.CommandHandler[Job]) (result we.Snapshot[Job], err error) {
	err = s.transactor.InTx(ctx, func(ctx context.Context) error {
		snapshot, err := s.store.FindOrFail(ctx, id)
		if err != nil {
			return err
		}

		handler := we.Handle(snapshot)
		if expected != nil {
			handler = handler.AssertVersionMatches(*expected)
		}

		result, err = command(handler).To(ctx, s.bus)
		return err
	})

	return result, err
}

func (s *Service) Start(ctx context.Context, id string, expected *int64) (we.Snapshot[Job], error) {
	return s.execute(ctx, id, expected, func(handler *we.CommandHandler[Job]) *we.CommandHandler[Job] {
		return handler.
			Update(func(job Job) Job { job.Status = Running; return job }).
			EmitEvent(StartedEvent)
	})
}

func (s *Service) Complete(ctx context.Context, id string, result string, expected *int64) (we.Snapshot[Job], error) {
	return s.execute(ctx, id, expected, func(handler *we.CommandHandler[Job]) *we.CommandHandler[Job] {
		return handler.
			Update(func(job Job) Job { job.Status = Completed; job.Result = result; return job }).
			EmitEvent(CompletedEvent)
	})
}

func (s *Service) Fail(ctx context.Context, id string, reason string, expected *int64) (we.Snapshot[Job], error) {
	return s.execute(ctx, id, expected, func(handler *we.CommandHandler[Job]) *we.CommandHandler[Job] {
		return handler.
			Update(func(job Job) Job { job.Status = Failed; job.Reason = reason; return job }).
			EmitEvent(FailedEvent)
	})
}

// MarkResultRead is idempotent: reading a result twice emits one event.
func (s *Service) MarkResultRead(ctx context.Context, id string) (we.Snapshot[Job], error) {
	return s.execute(ctx, id, nil, func(handler *we.CommandHandler[Job]) *we.CommandHandler[Job] {
		return handler.
			CheckPrecondition(func(job Job) bool { return job.Status == Completed }, ErrResultUnavailable).
			Update(func(job Job) Job { job.ResultRead = true; return job }).
			EmitEvent(ResultReadEvent).
			IfSnapshotWasChanged()
	})
}
