package service_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reseller-ledger-backend/internal/service"
)

func TestResellerLocks(t *testing.T) {
	t.Run("Concurrent sales serialize per reseller", func(t *testing.T) {
		f := newFixture(t)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(resellerID int32) {
				defer wg.Done()
				p := d("10")
				_, err := f.ledger.CreateSale(f.ctx, service.SaleInput{Date: day(1), ResellerID: resellerID, ProductID: 1, Qty: 1, Price: &p})
				assert.NoError(t, err)
			}(int32(i%2 + 1))
		}
		wg.Wait()

		assertDecimal(t, "100", f.balance(t, 1))
		assertDecimal(t, "100", f.balance(t, 2))
		assert.Zero(t, f.repos.Locks.Len())
	})

	t.Run("Entries released after each operation", func(t *testing.T) {
		f := newFixture(t)
		f.seedThreeSales(t)
		f.clearance(t, 1, day(4), "150")
		_, err := f.history.Undo(f.ctx)
		require.NoError(t, err)

		assert.Zero(t, f.repos.Locks.Len())
	})
}
