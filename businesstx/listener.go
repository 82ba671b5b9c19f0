package businesstx

import (
	"context"

	"github.com/weegigs/wee-streams-go/we"
)

// Listener feeds records to a processor, one storage transaction per record,
// so buffering and processing commit together.
type Listener struct {
	transactor we.Transactor
	manager    *ConsumerManager
	processor  Processor
}

func NewListener(transactor we.Transactor, manager *ConsumerManager, processor Processor) *Listener {
	return &Listener{transactor: transactor, manager: manager, processor: processor}
}

func (l *Listener) Handle(ctx context.Context, record we.Record) error {
	return l.transactor.InTx(ctx, func(ctx context.Context) error {
		return l.manager.Process(ctx, record, l.processor)
	})
}
