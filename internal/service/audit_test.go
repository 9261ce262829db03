package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/service"
)

func TestAuditService_AuditBalances(t *testing.T) {
	t.Run("Consistent ledger has no drift", func(t *testing.T) {
		f := newFixture(t)
		f.seedThreeSales(t)
		f.clearance(t, 1, day(4), "250")

		drifts, err := service.NewAuditService(f.repos, f.alerts, false).AuditBalances(f.ctx)
		require.NoError(t, err)
		assert.Empty(t, drifts)
		f.alerts.AssertNotCalled(t, "BalanceDrift", mock.Anything, mock.Anything)
	})

	t.Run("Drift is reported and repaired", func(t *testing.T) {
		f := newFixture(t)
		f.sale(t, 1, day(1), "180", "0")
		require.NoError(t, f.store.Resellers.SetBalance(context.Background(), 1, d("200")))

		alerts := new(MockAlertService)
		alerts.On("BalanceDrift", mock.Anything, mock.MatchedBy(func(ds []service.BalanceDrift) bool {
			return len(ds) == 1 && ds[0].ResellerID == 1
		})).Return(nil).Once()

		drifts, err := service.NewAuditService(f.repos, alerts, true).AuditBalances(f.ctx)
		require.NoError(t, err)
		require.Len(t, drifts, 1)
		assert.Equal(t, "Alice", drifts[0].ResellerName)
		assertDecimal(t, "200", drifts[0].Recorded)
		assertDecimal(t, "180", drifts[0].Expected)
		assertDecimal(t, "20", drifts[0].Difference())
		assert.True(t, drifts[0].Repaired)
		assertDecimal(t, "180", f.balance(t, 1))
		alerts.AssertExpectations(t)
	})
}

func TestCompensationService_RetryPending(t *testing.T) {
	t.Run("Sale payment restored", func(t *testing.T) {
		f := newFixture(t)
		s1 := f.sale(t, 1, day(1), "100", "0")
		require.NoError(t, f.store.Transactions.UpdatePayment(context.Background(), s1.ID, d("100"), d("0"), domain.PaymentStatusDueCleared))

		require.NoError(t, f.store.Compensations.Create(context.Background(), &domain.Compensation{
			ID:     "c-1",
			Kind:   domain.CompensationSalePayment,
			Status: domain.CompensationStatusPending,
			Sale: &domain.SaleDelta{
				SaleID: s1.ID, NewPaid: d("0"), NewOutstanding: d("100"), NewStatus: domain.PaymentStatusPending,
			},
		}))

		summary, err := service.NewCompensationService(f.repos, f.alerts, 3, 10).RetryPending(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Succeeded)
		got := f.get(t, s1.ID)
		assertDecimal(t, "0", got.Paid)
		assert.Equal(t, domain.PaymentStatusPending, got.PaymentStatus)
	})

	t.Run("Abandoned after max attempts", func(t *testing.T) {
		flaky := &flakyResellers{}
		f := newFixture(t, withResellers(flaky))
		require.NoError(t, f.store.Compensations.Create(context.Background(), &domain.Compensation{
			ID:         "c-2",
			Kind:       domain.CompensationBalanceAdjust,
			ResellerID: 1,
			Amount:     d("25"),
			Status:     domain.CompensationStatusPending,
		}))
		flaky.failAlways = true
		retry := service.NewCompensationService(f.repos, f.alerts, 2, 10)

		first, err := retry.RetryPending(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, service.RetrySummary{Attempted: 1}, first)

		second, err := retry.RetryPending(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, service.RetrySummary{Attempted: 1, Abandoned: 1}, second)

		c := f.store.Compensations.All()[0]
		assert.Equal(t, domain.CompensationStatusAbandoned, c.Status)
		assert.Equal(t, 2, c.Attempts)
		assert.Contains(t, c.LastError, "boom")
		f.alerts.AssertCalled(t, "CompensationAbandoned", mock.Anything, mock.Anything)

		third, err := retry.RetryPending(f.ctx)
		require.NoError(t, err)
		assert.Zero(t, third.Attempted)
	})
}
