package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/logger"
	"reseller-ledger-backend/internal/repository"
)

const transactionColumns = `id, transaction_type, date, reseller_id, product_id, qty, price, total, paid, outstanding, payment_status, created_at`

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

// columnValues flattens the sum type into the shared row layout. Clearances
// always store zero sale columns and a NULL product.
func columnValues(tx *domain.Transaction) (productID sql.NullInt32, qty int32, price, total, outstanding decimal.Decimal) {
	if tx.Sale == nil {
		return sql.NullInt32{}, 0, decimal.Zero, decimal.Zero, decimal.Zero
	}
	return sql.NullInt32{Int32: tx.Sale.ProductID, Valid: true}, tx.Sale.Qty, tx.Sale.Price, tx.Sale.Total, tx.Sale.Outstanding
}

func insertTransaction(ctx context.Context, q dbtx, tx *domain.Transaction) error {
	productID, qty, price, total, outstanding := columnValues(tx)
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	query := `INSERT INTO transactions (transaction_type, date, reseller_id, product_id, qty, price, total, paid, outstanding, payment_status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		string(tx.Type()), tx.Date, tx.ResellerID, productID, qty, price, total, tx.Paid, outstanding, string(tx.PaymentStatus), tx.CreatedAt,
	).Scan(&tx.ID)
	if err != nil {
		return err
	}
	return insertAllocations(ctx, q, tx)
}

func insertAllocations(ctx context.Context, q dbtx, tx *domain.Transaction) error {
	if tx.Clearance == nil {
		return nil
	}
	for i, a := range tx.Clearance.Allocations {
		_, err := q.ExecContext(ctx,
			`INSERT INTO clearance_allocations (clearance_id, sale_id, amount, position) VALUES ($1, $2, $3, $4)`,
			tx.ID, a.SaleID, a.Amount, i)
		if err != nil {
			return fmt.Errorf("failed to insert allocation for sale %d: %w", a.SaleID, err)
		}
	}
	return nil
}

func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	logger.EnterMethod("transactionRepository.Create", "type", tx.Type(), "resellerID", tx.ResellerID)

	if tx.Clearance == nil || len(tx.Clearance.Allocations) == 0 {
		if err := insertTransaction(ctx, r.db, tx); err != nil {
			logger.ExitMethodWithError("transactionRepository.Create", err, "resellerID", tx.ResellerID)
			return err
		}
		logger.ExitMethod("transactionRepository.Create", "transactionID", tx.ID)
		return nil
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	if err := insertTransaction(ctx, dbTx, tx); err != nil {
		logger.ExitMethodWithError("transactionRepository.Create", err, "resellerID", tx.ResellerID)
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return err
	}

	logger.ExitMethod("transactionRepository.Create", "transactionID", tx.ID, "allocations", len(tx.Clearance.Allocations))
	return nil
}

func (r *transactionRepository) CreateBatch(ctx context.Context, txs []*domain.Transaction) error {
	logger.EnterMethod("transactionRepository.CreateBatch", "count", len(txs))

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	for _, tx := range txs {
		if err := insertTransaction(ctx, dbTx, tx); err != nil {
			logger.ExitMethodWithError("transactionRepository.CreateBatch", err, "count", len(txs))
			return err
		}
	}
	if err := dbTx.Commit(); err != nil {
		logger.ExitMethodWithError("transactionRepository.CreateBatch", err, "count", len(txs))
		return err
	}

	logger.ExitMethod("transactionRepository.CreateBatch", "count", len(txs))
	return nil
}

func (r *transactionRepository) Restore(ctx context.Context, txs []domain.Transaction) error {
	logger.EnterMethod("transactionRepository.Restore", "count", len(txs))

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	query := `INSERT INTO transactions (id, transaction_type, date, reseller_id, product_id, qty, price, total, paid, outstanding, payment_status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	for i := range txs {
		tx := &txs[i]
		productID, qty, price, total, outstanding := columnValues(tx)
		_, err := dbTx.ExecContext(ctx, query,
			tx.ID, string(tx.Type()), tx.Date, tx.ResellerID, productID, qty, price, total, tx.Paid, outstanding, string(tx.PaymentStatus), tx.CreatedAt)
		if err != nil {
			logger.ExitMethodWithError("transactionRepository.Restore", err, "transactionID", tx.ID)
			return err
		}
		if err := insertAllocations(ctx, dbTx, tx); err != nil {
			return err
		}
	}
	if err := dbTx.Commit(); err != nil {
		return err
	}

	logger.ExitMethod("transactionRepository.Restore", "count", len(txs))
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id int32) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	txs := []domain.Transaction{*tx}
	if err := r.loadAllocations(ctx, txs); err != nil {
		return nil, err
	}
	return &txs[0], nil
}

func (r *transactionRepository) GetByIDs(ctx context.Context, ids []int32) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ANY($1) ORDER BY date, id`, pq.Array(toInt64s(ids)))
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, rows)
}

func (r *transactionRepository) Update(ctx context.Context, tx *domain.Transaction) error {
	logger.EnterMethod("transactionRepository.Update", "transactionID", tx.ID)

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	productID, qty, price, total, outstanding := columnValues(tx)
	query := `UPDATE transactions
	          SET date = $1, reseller_id = $2, product_id = $3, qty = $4, price = $5, total = $6,
	              paid = $7, outstanding = $8, payment_status = $9
	          WHERE id = $10`
	result, err := dbTx.ExecContext(ctx, query,
		tx.Date, tx.ResellerID, productID, qty, price, total, tx.Paid, outstanding, string(tx.PaymentStatus), tx.ID)
	if err != nil {
		logger.ExitMethodWithError("transactionRepository.Update", err, "transactionID", tx.ID)
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}

	if tx.Clearance != nil {
		if _, err := dbTx.ExecContext(ctx, `DELETE FROM clearance_allocations WHERE clearance_id = $1`, tx.ID); err != nil {
			return err
		}
		if err := insertAllocations(ctx, dbTx, tx); err != nil {
			return err
		}
	}

	if err := dbTx.Commit(); err != nil {
		return err
	}
	logger.ExitMethod("transactionRepository.Update", "transactionID", tx.ID)
	return nil
}

func (r *transactionRepository) UpdatePayment(ctx context.Context, saleID int32, paid, outstanding decimal.Decimal, status domain.PaymentStatus) error {
	query := `UPDATE transactions SET paid = $1, outstanding = $2, payment_status = $3 WHERE id = $4 AND transaction_type = 'Sale'`
	logger.DatabaseCall("UPDATE", query, "saleID", saleID)

	result, err := r.db.ExecContext(ctx, query, paid, outstanding, string(status), saleID)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "saleID", saleID)
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	logger.DatabaseResult("UPDATE", rows, nil, "saleID", saleID)
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *transactionRepository) Delete(ctx context.Context, ids []int32) error {
	logger.EnterMethod("transactionRepository.Delete", "count", len(ids))

	result, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ANY($1)`, pq.Array(toInt64s(ids)))
	if err != nil {
		logger.ExitMethodWithError("transactionRepository.Delete", err, "count", len(ids))
		return err
	}
	rows, _ := result.RowsAffected()

	logger.ExitMethod("transactionRepository.Delete", "deleted", rows)
	return nil
}

func (r *transactionRepository) ListSalesForReseller(ctx context.Context, resellerID int32, statuses []domain.PaymentStatus) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
	          WHERE reseller_id = $1 AND transaction_type = 'Sale' AND outstanding > 0`
	args := []interface{}{resellerID}

	if len(statuses) > 0 {
		query += " AND payment_status = ANY($2)"
		args = append(args, pq.Array(statusStrings(statuses)))
	}
	query += " ORDER BY date ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, rows)
}

func (r *transactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1 = 1`
	args := []interface{}{}
	argIndex := 1

	if filter.ResellerID != nil {
		query += fmt.Sprintf(" AND reseller_id = $%d", argIndex)
		args = append(args, *filter.ResellerID)
		argIndex++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND transaction_type = $%d", argIndex)
		args = append(args, string(filter.Type))
		argIndex++
	}
	if len(filter.Statuses) > 0 {
		query += fmt.Sprintf(" AND payment_status = ANY($%d)", argIndex)
		args = append(args, pq.Array(statusStrings(filter.Statuses)))
		argIndex++
	}
	if filter.From != nil {
		query += fmt.Sprintf(" AND date >= $%d", argIndex)
		args = append(args, *filter.From)
		argIndex++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND date <= $%d", argIndex)
		args = append(args, *filter.To)
	}
	query += " ORDER BY date ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, rows)
}

func (r *transactionRepository) SumOutstanding(ctx context.Context, resellerID int32) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(outstanding), 0) FROM transactions WHERE reseller_id = $1 AND transaction_type = 'Sale'`,
		resellerID).Scan(&sum)
	return sum, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx          domain.Transaction
		txType      string
		status      string
		productID   sql.NullInt32
		qty         int32
		price       decimal.Decimal
		total       decimal.Decimal
		outstanding decimal.Decimal
	)
	err := row.Scan(&tx.ID, &txType, &tx.Date, &tx.ResellerID, &productID, &qty, &price, &total, &tx.Paid, &outstanding, &status, &tx.CreatedAt)
	if err != nil {
		return nil, err
	}
	tx.PaymentStatus = domain.PaymentStatus(status)

	if domain.TransactionType(txType) == domain.TransactionTypeSale {
		tx.Sale = &domain.SaleLine{
			ProductID:   productID.Int32,
			Qty:         qty,
			Price:       price,
			Total:       total,
			Outstanding: outstanding,
		}
	} else {
		tx.Clearance = &domain.ClearanceDetails{}
	}
	return &tx, nil
}

func (r *transactionRepository) collect(ctx context.Context, rows *sql.Rows) ([]domain.Transaction, error) {
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := r.loadAllocations(ctx, txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// loadAllocations fills the allocation lists of the clearances in txs.
func (r *transactionRepository) loadAllocations(ctx context.Context, txs []domain.Transaction) error {
	index := make(map[int32]int)
	var ids []int64
	for i := range txs {
		if txs[i].Clearance != nil {
			index[txs[i].ID] = i
			ids = append(ids, int64(txs[i].ID))
		}
	}
	if len(ids) == 0 {
		return nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT clearance_id, sale_id, amount FROM clearance_allocations WHERE clearance_id = ANY($1) ORDER BY clearance_id, position`,
		pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var clearanceID int32
		var a domain.Allocation
		if err := rows.Scan(&clearanceID, &a.SaleID, &a.Amount); err != nil {
			return err
		}
		if i, ok := index[clearanceID]; ok {
			txs[i].Clearance.Allocations = append(txs[i].Clearance.Allocations, a)
		}
	}
	return rows.Err()
}

func statusStrings(statuses []domain.PaymentStatus) []string {
	strs := make([]string, len(statuses))
	for i, s := range statuses {
		strs[i] = string(s)
	}
	return strs
}

func toInt64s(ids []int32) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
