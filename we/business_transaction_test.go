package we_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weegigs/wee-streams-go/we"
)

func TestBusinessTransactionHolder(t *testing.T) {
	next := func() we.TransactionID { return "tx-1" }

	t.Run("nests by depth", func(t *testing.T) {
		var holder we.BusinessTransactionHolder

		assert.False(t, holder.IsActive())
		assert.Equal(t, 1, holder.Open(next).NestingDepth)
		assert.Equal(t, 2, holder.Open(func() we.TransactionID { return "tx-2" }).NestingDepth)

		current, ok := holder.Current()
		assert.True(t, ok)
		assert.Equal(t, we.TransactionID("tx-1"), current.TransactionID)

		assert.Nil(t, holder.Close())
		assert.True(t, holder.IsActive())
		assert.Nil(t, holder.Close())
		assert.False(t, holder.IsActive())
	})

	t.Run("fails to close without a transaction", func(t *testing.T) {
		var holder we.BusinessTransactionHolder
		assert.ErrorIs(t, holder.Close(), we.ErrTransactionInvariant)
	})

	t.Run("belongs to a unit of work", func(t *testing.T) {
		_, err := we.BusinessTransactionHolderFrom(context.Background())
		assert.ErrorIs(t, err, we.ErrNoTransaction)

		ctx := we.BeginUnitOfWork(context.Background())
		holder, err := we.BusinessTransactionHolderFrom(ctx)
		if !assert.Nil(t, err) {
			return
		}
		holder.Open(next)

		current, ok := we.CurrentBusinessTransaction(ctx)
		assert.True(t, ok)
		assert.Equal(t, we.TransactionID("tx-1"), current.TransactionID)

		_, ok = we.CurrentBusinessTransaction(we.BeginUnitOfWork(context.Background()))
		assert.False(t, ok)
	})
}
