package businesstx

import (
	"github.com/weegigs/wee-streams-go/we"
)

// StartedEvent opens a business transaction on the log.
type StartedEvent interface {
	RootContextIdentifier() we.AggregateIdentifier
	BusinessTransactionStarted()
}

// FinishedEvent closes a business transaction on the log.
type FinishedEvent interface {
	RootContextIdentifier() we.AggregateIdentifier
	BusinessTransactionFinished()
}

type BatchOperationStarted struct {
	Root      we.AggregateIdentifier `json:"root"`
	Operation string                 `json:"operation"`
}

func (e BatchOperationStarted) RootContextIdentifier() we.AggregateIdentifier {
	return e.Root
}

func (BatchOperationStarted) BusinessTransactionStarted() {}

type BatchOperationFinished struct {
	Root      we.AggregateIdentifier `json:"root"`
	Operation string                 `json:"operation"`
}

func (e BatchOperationFinished) RootContextIdentifier() we.AggregateIdentifier {
	return e.Root
}

func (BatchOperationFinished) BusinessTransactionFinished() {}

var (
	BatchOperationStartedType  = we.EventTypeOf(BatchOperationStarted{})
	BatchOperationFinishedType = we.EventTypeOf(BatchOperationFinished{})
)

// RegisterMarkers teaches codec the payloads of the batch operation markers.
func RegisterMarkers(codec *we.Codec) *we.Codec {
	return codec.
		RegisterEvent(BatchOperationStartedType, we.DecoderFor[BatchOperationStarted]()).
		RegisterEvent(BatchOperationFinishedType, we.DecoderFor[BatchOperationFinished]())
}
