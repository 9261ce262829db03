package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reseller-ledger-backend/internal/domain"
)

var testDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func sale(id int32, daysAgo int, total, paid string) domain.Transaction {
	s := domain.NewSale(testDate.AddDate(0, 0, -daysAgo), 1, 1, 1, d(total), d(paid))
	s.ID = id
	return s
}

func TestPlanAllocation(t *testing.T) {
	t.Run("OldestFirst", func(t *testing.T) {
		sales := []domain.Transaction{
			sale(1, 10, "100", "0"),
			sale(2, 5, "50", "0"),
		}

		deltas, remaining := domain.PlanAllocation(sales, d("120"))
		require.Len(t, deltas, 2)
		assert.True(t, remaining.IsZero())

		assert.Equal(t, int32(1), deltas[0].SaleID)
		assert.True(t, d("100").Equal(deltas[0].PaymentApplied))
		assert.True(t, deltas[0].NewOutstanding.IsZero())
		assert.Equal(t, domain.PaymentStatusDueCleared, deltas[0].NewStatus)

		assert.Equal(t, int32(2), deltas[1].SaleID)
		assert.True(t, d("20").Equal(deltas[1].PaymentApplied))
		assert.True(t, d("30").Equal(deltas[1].NewOutstanding))
		assert.Equal(t, domain.PaymentStatusPartiallyPaid, deltas[1].NewStatus)
	})

	t.Run("SkipsSettledSales", func(t *testing.T) {
		sales := []domain.Transaction{
			sale(1, 10, "100", "100"),
			sale(2, 5, "50", "10"),
		}

		deltas, _ := domain.PlanAllocation(sales, d("10"))
		require.Len(t, deltas, 1)
		assert.Equal(t, int32(2), deltas[0].SaleID)
	})

	t.Run("ExcessIsReturned", func(t *testing.T) {
		sales := []domain.Transaction{sale(1, 1, "30", "0")}

		deltas, remaining := domain.PlanAllocation(sales, d("50"))
		require.Len(t, deltas, 1)
		assert.True(t, d("20").Equal(remaining))
	})

	t.Run("AppliedNeverExceedsAmount", func(t *testing.T) {
		sales := []domain.Transaction{
			sale(1, 3, "10", "0"),
			sale(2, 2, "10", "0"),
			sale(3, 1, "10", "0"),
		}

		deltas, _ := domain.PlanAllocation(sales, d("25"))
		sum := d("0")
		for _, delta := range deltas {
			sum = sum.Add(delta.PaymentApplied)
			assert.True(t, delta.NewPaid.Add(delta.NewOutstanding).Equal(d("10")))
		}
		assert.True(t, d("25").Equal(sum))
	})
}

func TestReleasePayment(t *testing.T) {
	s := sale(7, 1, "100", "80")

	delta := domain.ReleasePayment(&s, d("50"))
	assert.True(t, d("30").Equal(delta.NewPaid))
	assert.True(t, d("70").Equal(delta.NewOutstanding))
	assert.Equal(t, domain.PaymentStatusPartiallyPaid, delta.NewStatus)
	assert.True(t, d("-50").Equal(delta.PaymentApplied))

	capped := domain.ReleasePayment(&s, d("500"))
	assert.True(t, capped.NewPaid.IsZero())
	assert.Equal(t, domain.PaymentStatusPending, capped.NewStatus)
}

func TestSaleDelta_Inverse(t *testing.T) {
	s := sale(3, 1, "100", "0")
	delta := domain.ApplyPayment(&s, d("100"))
	inv := delta.Inverse()

	assert.True(t, inv.NewPaid.Equal(delta.OldPaid))
	assert.True(t, inv.NewOutstanding.Equal(delta.OldOutstanding))
	assert.Equal(t, delta.OldStatus, inv.NewStatus)
	assert.Equal(t, s.ResellerID, inv.ResellerID)
}

func TestAllocationsFrom(t *testing.T) {
	s := sale(3, 1, "100", "0")
	allocs := domain.AllocationsFrom([]domain.SaleDelta{domain.ApplyPayment(&s, d("40"))})
	require.Len(t, allocs, 1)
	assert.Equal(t, int32(3), allocs[0].SaleID)
	assert.True(t, d("40").Equal(allocs[0].Amount))
}
