package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/logger"
	"reseller-ledger-backend/internal/repository"
)

type resellerRepository struct {
	db *sql.DB
}

func NewResellerRepository(db *sql.DB) repository.ResellerRepository {
	return &resellerRepository{db: db}
}

func (r *resellerRepository) GetByID(ctx context.Context, id int32) (*domain.Reseller, error) {
	query := `SELECT id, name, COALESCE(email, ''), due_balance, updated_at FROM resellers WHERE id = $1`
	var res domain.Reseller
	err := r.db.QueryRowContext(ctx, query, id).Scan(&res.ID, &res.Name, &res.Email, &res.DueBalance, &res.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *resellerRepository) List(ctx context.Context) ([]domain.Reseller, error) {
	query := `SELECT id, name, COALESCE(email, ''), due_balance, updated_at FROM resellers ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var resellers []domain.Reseller
	for rows.Next() {
		var res domain.Reseller
		if err := rows.Scan(&res.ID, &res.Name, &res.Email, &res.DueBalance, &res.UpdatedAt); err != nil {
			return nil, err
		}
		resellers = append(resellers, res)
	}
	return resellers, rows.Err()
}

// AdjustBalance increments due_balance in a single statement so concurrent
// adjustments never lose an update.
func (r *resellerRepository) AdjustBalance(ctx context.Context, id int32, delta decimal.Decimal) (decimal.Decimal, error) {
	logger.EnterMethod("resellerRepository.AdjustBalance", "resellerID", id, "delta", delta.String())

	query := `UPDATE resellers SET due_balance = due_balance + $1, updated_at = $2 WHERE id = $3 RETURNING due_balance`
	logger.DatabaseCall("UPDATE", query, "resellerID", id)

	var newBalance decimal.Decimal
	err := r.db.QueryRowContext(ctx, query, delta, time.Now(), id).Scan(&newBalance)
	if errors.Is(err, sql.ErrNoRows) {
		err = repository.ErrNotFound
	}
	if err != nil {
		logger.ExitMethodWithError("resellerRepository.AdjustBalance", err, "resellerID", id)
		return decimal.Zero, err
	}

	oldBalance := newBalance.Sub(delta)
	logger.ExitMethod("resellerRepository.AdjustBalance", "resellerID", id, "oldBalance", oldBalance.String(), "newBalance", newBalance.String())
	return oldBalance, nil
}

func (r *resellerRepository) SetBalance(ctx context.Context, id int32, value decimal.Decimal) error {
	logger.EnterMethod("resellerRepository.SetBalance", "resellerID", id, "value", value.String())

	query := `UPDATE resellers SET due_balance = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, value, time.Now(), id)
	if err != nil {
		logger.ExitMethodWithError("resellerRepository.SetBalance", err, "resellerID", id)
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	logger.DatabaseResult("UPDATE", rows, nil, "resellerID", id)
	if rows == 0 {
		return repository.ErrNotFound
	}

	logger.ExitMethod("resellerRepository.SetBalance", "resellerID", id)
	return nil
}
