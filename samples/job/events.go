package job

import (
	"github.com/pkg/errors"

	"github.com/weegigs/wee-streams-go/we"
)

const (
	QueuedEvent     we.EventType = "job:queued"
	RejectedEvent   we.EventType = "job:rejected"
	StartedEvent    we.EventType = "job:started"
	CompletedEvent  we.EventType = "job:completed"
	FailedEvent     we.EventType = "job:failed"
	ResultReadEvent we.EventType = "job:result-read"
)

// statusOf is the status a job has after an event of eventType.
func statusOf(eventType we.EventType, previous Status) (Status, error) {
	switch eventType {
	case QueuedEvent:
		return Queued, nil
	case RejectedEvent:
		return Rejected, nil
	case StartedEvent:
		return Running, nil
	case CompletedEvent:
		return Completed, nil
	case FailedEvent:
		return Failed, nil
	case ResultReadEvent:
		return previous, nil
	default:
		return "", errors.Errorf("unknown job event %s", eventType)
	}
}

// Validate rejects states that the lifecycle does not reach through event.
// It runs for online and restored events alike, before the snapshot is
// written.
func Validate(current *we.Snapshot[Job], next Job, event *we.Event) error {
	if current == nil {
		status, err := statusOf(event.Type, "")
		if err != nil {
			return err
		}
		if err := Lifecycle.Create(status); err != nil {
			return err
		}
		if next.Status != status {
			return we.InvalidStateTransition(status, next.Status)
		}
		return nil
	}

	previous := current.State.Status
	status, err := statusOf(event.Type, previous)
	if err != nil {
		return err
	}

	if next.Status != status {
		return we.InvalidStateTransition(previous, next.Status)
	}

	if event.Type == ResultReadEvent {
		if previous != Completed {
			return we.InvalidStateTransition(previous, Completed)
		}
		return nil
	}

	return Lifecycle.Transition(previous, status)
}

func NewStore(repository we.Repository[Job]) *we.Store[Job] {
	return we.NewStore[Job](Aggregate, repository, we.WithValidator[Job](Validate))
}

// RegisterEvents teaches codec to decode job payloads.
func RegisterEvents(codec *we.Codec) *we.Codec {
	return codec.RegisterAggregate(Aggregate, we.DecoderFor[Job]())
}
