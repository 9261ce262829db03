package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/service"
)

func TestLedgerService_EditSale(t *testing.T) {
	t.Run("Qty change reprices from the table", func(t *testing.T) {
		f := newFixture(t)
		tx, err := f.ledger.CreateSale(f.ctx, service.SaleInput{Date: day(1), ResellerID: 1, ProductID: 1, Qty: 2})
		require.NoError(t, err)
		assertDecimal(t, "180", f.balance(t, 1))

		edited, err := f.ledger.EditField(f.ctx, tx.ID, "qty", "10")
		require.NoError(t, err)

		assertDecimal(t, "80", edited.Sale.Price)
		assertDecimal(t, "800", edited.Total())
		assertDecimal(t, "800", f.balance(t, 1))
	})

	t.Run("Paid change updates status and balance", func(t *testing.T) {
		f := newFixture(t)
		tx := f.sale(t, 1, day(1), "100", "0")

		edited, err := f.ledger.EditField(f.ctx, tx.ID, "paid", "100")
		require.NoError(t, err)

		assert.Equal(t, domain.PaymentStatusFullyPaid, edited.PaymentStatus)
		assertDecimal(t, "0", f.balance(t, 1))

		_, err = f.ledger.EditField(f.ctx, tx.ID, "paid", "150")
		assert.ErrorIs(t, err, service.ErrPaidExceedsTotal)
	})

	t.Run("Member change moves the outstanding", func(t *testing.T) {
		f := newFixture(t)
		f.sale(t, 1, day(1), "100", "0")
		tx := f.sale(t, 1, day(2), "300", "50")

		edited, err := f.ledger.EditField(f.ctx, tx.ID, "member_id", "2")
		require.NoError(t, err)

		assert.Equal(t, int32(2), edited.ResellerID)
		assertDecimal(t, "100", f.balance(t, 1))
		assertDecimal(t, "250", f.balance(t, 2))
	})

	t.Run("Date edit keeps a settled status", func(t *testing.T) {
		f := newFixture(t)
		s1, _, _ := f.seedThreeSales(t)
		f.clearance(t, 1, day(4), "100")

		edited, err := f.ledger.EditField(f.ctx, s1.ID, "date", "2024-01-05")
		require.NoError(t, err)

		assert.Equal(t, domain.PaymentStatusDueCleared, edited.PaymentStatus)
		assert.Equal(t, day(5), edited.Date)
		assertDecimal(t, "500", f.balance(t, 1))
	})

	t.Run("Bad input", func(t *testing.T) {
		f := newFixture(t)
		tx := f.sale(t, 1, day(1), "100", "0")
		before := f.snapshot(t)

		cases := []struct {
			field, value string
			want         error
		}{
			{"total", "5", service.ErrReadOnlyField},
			{"payment_status", "Fully Paid", service.ErrReadOnlyField},
			{"colour", "red", service.ErrUnknownField},
			{"qty", "many", service.ErrInvalidFieldValue},
			{"qty", "0", service.ErrInvalidQuantity},
			{"date", "01/02/2024", service.ErrInvalidFieldValue},
			{"member_id", "77", service.ErrResellerNotFound},
			{"product_id", "77", service.ErrProductNotFound},
		}
		for _, tc := range cases {
			t.Run(tc.field+"="+tc.value, func(t *testing.T) {
				_, err := f.ledger.EditField(f.ctx, tx.ID, tc.field, tc.value)
				assert.ErrorIs(t, err, tc.want)
			})
		}
		assert.Equal(t, before, f.snapshot(t))

		_, err := f.ledger.EditField(f.ctx, 999, "qty", "1")
		assert.ErrorIs(t, err, service.ErrTransactionNotFound)
	})

	t.Run("Update failure reverses balance", func(t *testing.T) {
		flaky := &flakyTransactions{}
		f := newFixture(t, withTransactions(flaky))
		tx := f.sale(t, 1, day(1), "100", "0")
		before := f.snapshot(t)

		flaky.failUpdate = true
		_, err := f.ledger.EditField(f.ctx, tx.ID, "paid", "40")
		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, before, f.snapshot(t))
	})
}

func TestLedgerService_EditClearance(t *testing.T) {
	t.Run("Sale-only fields are read-only", func(t *testing.T) {
		f := newFixture(t)
		f.seedThreeSales(t)
		c := f.clearance(t, 1, day(4), "250")
		before := f.snapshot(t)

		for _, field := range []string{"qty", "product_id", "price", "total", "outstanding", "payment_status", "transaction_type"} {
			_, err := f.ledger.EditField(f.ctx, c.ID, field, "1")
			assert.ErrorIs(t, err, service.ErrReadOnlyField, field)
		}
		assert.Equal(t, before, f.snapshot(t))
	})

	t.Run("Paid change re-books allocations", func(t *testing.T) {
		f := newFixture(t)
		s1, s2, s3 := f.seedThreeSales(t)
		c := f.clearance(t, 1, day(4), "250")

		edited, err := f.ledger.EditField(f.ctx, c.ID, "paid", "120")
		require.NoError(t, err)

		assertDecimal(t, "480", f.balance(t, 1))
		assert.Equal(t, domain.PaymentStatusPartialClearance, edited.PaymentStatus)
		require.Len(t, edited.Clearance.Allocations, 2)
		assertDecimal(t, "100", edited.Clearance.Allocations[0].Amount)
		assertDecimal(t, "20", edited.Clearance.Allocations[1].Amount)

		assert.Equal(t, domain.PaymentStatusDueCleared, f.get(t, s1.ID).PaymentStatus)
		got2 := f.get(t, s2.ID)
		assertDecimal(t, "20", got2.Paid)
		assertDecimal(t, "180", got2.Outstanding())
		assert.Equal(t, domain.PaymentStatusPending, f.get(t, s3.ID).PaymentStatus)

		stored := f.get(t, c.ID)
		assertDecimal(t, "120", stored.Paid)
		assert.Len(t, stored.Clearance.Allocations, 2)
	})

	t.Run("Paid change may not drive the balance negative", func(t *testing.T) {
		f := newFixture(t)
		f.seedThreeSales(t)
		c := f.clearance(t, 1, day(4), "250")
		before := f.snapshot(t)

		_, err := f.ledger.EditField(f.ctx, c.ID, "paid", "700")
		assert.ErrorIs(t, err, service.ErrNegativeBalance)
		assert.Equal(t, before, f.snapshot(t))
	})

	t.Run("Member change moves the payment", func(t *testing.T) {
		f := newFixture(t)
		s1 := f.sale(t, 1, day(1), "100", "0")
		s2 := f.sale(t, 2, day(1), "80", "0")
		c := f.clearance(t, 1, day(2), "60")

		edited, err := f.ledger.EditField(f.ctx, c.ID, "member_id", "2")
		require.NoError(t, err)

		assertDecimal(t, "100", f.balance(t, 1))
		assertDecimal(t, "20", f.balance(t, 2))
		assert.Equal(t, domain.PaymentStatusPending, f.get(t, s1.ID).PaymentStatus)
		assertDecimal(t, "60", f.get(t, s2.ID).Paid)
		require.Len(t, edited.Clearance.Allocations, 1)
		assert.Equal(t, s2.ID, edited.Clearance.Allocations[0].SaleID)
	})
}
