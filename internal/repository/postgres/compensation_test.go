package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/repository"
	"reseller-ledger-backend/internal/repository/postgres"
)

func TestCompensationRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewCompensationRepository(db)
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		c := &domain.Compensation{
			ID: "c-1", Kind: domain.CompensationBalanceAdjust, Operation: "create clearance",
			ResellerID: 1, Amount: d("250"), Status: domain.CompensationStatusPending, LastError: "boom",
		}
		mock.ExpectExec("INSERT INTO ledger_compensations").
			WithArgs("c-1", "balance_adjust", "create clearance", int32(1), d("250"), sqlmock.AnyArg(), "pending", 0, "boom", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, c))
		assert.False(t, c.CreatedAt.IsZero())
	})

	t.Run("ListPending decodes sale deltas", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("FROM ledger_compensations WHERE status = 'pending' ORDER BY created_at ASC LIMIT \\$1").
			WithArgs(10).
			WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "operation", "reseller_id", "amount", "sale_delta", "status", "attempts", "last_error", "created_at", "updated_at"}).
				AddRow("c-2", "sale_payment", "edit clearance", 1, "-20", []byte(`{"sale_id":5,"new_paid":"0","new_outstanding":"100","new_status":"Pending"}`), "pending", 1, "", now, now))

		comps, err := repo.ListPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, comps, 1)
		require.NotNil(t, comps[0].Sale)
		assert.Equal(t, int32(5), comps[0].Sale.SaleID)
		assert.Equal(t, domain.PaymentStatusPending, comps[0].Sale.NewStatus)
		assert.True(t, d("100").Equal(comps[0].Sale.NewOutstanding))
	})

	t.Run("Update unknown id", func(t *testing.T) {
		mock.ExpectExec("UPDATE ledger_compensations SET status").
			WithArgs("done", 1, "", sqlmock.AnyArg(), "missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Update(ctx, &domain.Compensation{ID: "missing", Status: domain.CompensationStatusDone, Attempts: 1})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
