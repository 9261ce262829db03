package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/service"
)

func TestLedgerService_DeleteTransactions(t *testing.T) {
	t.Run("Clearance release restores the sales", func(t *testing.T) {
		f := newFixture(t)
		s1, s2, _ := f.seedThreeSales(t)
		c := f.clearance(t, 1, day(4), "250")

		require.NoError(t, f.ledger.DeleteTransactions(f.ctx, []int32{c.ID}))

		assertDecimal(t, "600", f.balance(t, 1))
		for _, id := range []int32{s1.ID, s2.ID} {
			got := f.get(t, id)
			assertDecimal(t, "0", got.Paid)
			assert.Equal(t, domain.PaymentStatusPending, got.PaymentStatus)
		}
		assert.Equal(t, 3, f.store.Transactions.Count())
	})

	t.Run("Sale and its clearance together", func(t *testing.T) {
		f := newFixture(t)
		s1, s2, _ := f.seedThreeSales(t)
		c := f.clearance(t, 1, day(4), "250")

		require.NoError(t, f.ledger.DeleteTransactions(f.ctx, []int32{s1.ID, c.ID}))

		assertDecimal(t, "500", f.balance(t, 1))
		assertDecimal(t, "0", f.get(t, s2.ID).Paid)
		assert.Equal(t, 2, f.store.Transactions.Count())
	})

	t.Run("Released sale that no longer exists is skipped", func(t *testing.T) {
		f := newFixture(t)
		s1, _, _ := f.seedThreeSales(t)
		c := f.clearance(t, 1, day(4), "150")
		require.NoError(t, f.ledger.DeleteTransactions(f.ctx, []int32{s1.ID}))
		assertDecimal(t, "450", f.balance(t, 1))

		require.NoError(t, f.ledger.DeleteTransactions(f.ctx, []int32{c.ID}))
		assertDecimal(t, "600", f.balance(t, 1))
	})

	t.Run("Missing ids and empty selection", func(t *testing.T) {
		f := newFixture(t)
		s1 := f.sale(t, 1, day(1), "100", "0")

		assert.ErrorIs(t, f.ledger.DeleteTransactions(f.ctx, nil), service.ErrEmptySelection)
		assert.ErrorIs(t, f.ledger.DeleteTransactions(f.ctx, []int32{s1.ID, 404}), service.ErrTransactionNotFound)
		assert.Equal(t, 1, f.store.Transactions.Count())
	})

	t.Run("Delete failure reverses every delta", func(t *testing.T) {
		flaky := &flakyTransactions{}
		f := newFixture(t, withTransactions(flaky))
		s1, _, _ := f.seedThreeSales(t)
		c := f.clearance(t, 1, day(4), "250")
		before := f.snapshot(t)

		flaky.failDelete = true
		err := f.ledger.DeleteTransactions(f.ctx, []int32{s1.ID, c.ID})
		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, before, f.snapshot(t))
	})
}
