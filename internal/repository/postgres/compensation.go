package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/logger"
	"reseller-ledger-backend/internal/repository"
)

type compensationRepository struct {
	db *sql.DB
}

func NewCompensationRepository(db *sql.DB) repository.CompensationRepository {
	return &compensationRepository{db: db}
}

func (r *compensationRepository) Create(ctx context.Context, c *domain.Compensation) error {
	logger.EnterMethod("compensationRepository.Create", "id", c.ID, "kind", c.Kind)

	saleDelta, err := marshalSaleDelta(c.Sale)
	if err != nil {
		return err
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	query := `INSERT INTO ledger_compensations (id, kind, operation, reseller_id, amount, sale_delta, status, attempts, last_error, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.db.ExecContext(ctx, query,
		c.ID, string(c.Kind), c.Operation, c.ResellerID, c.Amount, saleDelta, string(c.Status), c.Attempts, c.LastError, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		logger.ExitMethodWithError("compensationRepository.Create", err, "id", c.ID)
		return err
	}

	logger.ExitMethod("compensationRepository.Create", "id", c.ID)
	return nil
}

func (r *compensationRepository) ListPending(ctx context.Context, limit int) ([]domain.Compensation, error) {
	query := `SELECT id, kind, operation, reseller_id, amount, sale_delta, status, attempts, COALESCE(last_error, ''), created_at, updated_at
	          FROM ledger_compensations WHERE status = 'pending' ORDER BY created_at ASC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comps []domain.Compensation
	for rows.Next() {
		var (
			c         domain.Compensation
			kind      string
			status    string
			saleDelta []byte
		)
		if err := rows.Scan(&c.ID, &kind, &c.Operation, &c.ResellerID, &c.Amount, &saleDelta, &status, &c.Attempts, &c.LastError, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Kind = domain.CompensationKind(kind)
		c.Status = domain.CompensationStatus(status)
		if len(saleDelta) > 0 {
			var delta domain.SaleDelta
			if err := json.Unmarshal(saleDelta, &delta); err != nil {
				return nil, err
			}
			c.Sale = &delta
		}
		comps = append(comps, c)
	}
	return comps, rows.Err()
}

func (r *compensationRepository) Update(ctx context.Context, c *domain.Compensation) error {
	c.UpdatedAt = time.Now()
	query := `UPDATE ledger_compensations SET status = $1, attempts = $2, last_error = $3, updated_at = $4 WHERE id = $5`
	result, err := r.db.ExecContext(ctx, query, string(c.Status), c.Attempts, c.LastError, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func marshalSaleDelta(delta *domain.SaleDelta) ([]byte, error) {
	if delta == nil {
		return nil, nil
	}
	return json.Marshal(delta)
}
