package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"reseller-ledger-backend/internal/domain"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("record not found")

type ResellerRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Reseller, error)
	List(ctx context.Context) ([]domain.Reseller, error)

	// AdjustBalance adds delta to the reseller's due balance and returns the
	// balance as it was before the change.
	AdjustBalance(ctx context.Context, id int32, delta decimal.Decimal) (decimal.Decimal, error)
	SetBalance(ctx context.Context, id int32, value decimal.Decimal) error
}

type ProductRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
}

type TransactionRepository interface {
	// Create inserts a sale, or a clearance together with its allocations,
	// and sets tx.ID.
	Create(ctx context.Context, tx *domain.Transaction) error
	// CreateBatch inserts every record or none.
	CreateBatch(ctx context.Context, txs []*domain.Transaction) error
	// Restore re-inserts previously deleted records under their original ids.
	Restore(ctx context.Context, txs []domain.Transaction) error
	GetByID(ctx context.Context, id int32) (*domain.Transaction, error)
	GetByIDs(ctx context.Context, ids []int32) ([]domain.Transaction, error)
	// Update rewrites every column of tx and, for clearances, its allocations.
	Update(ctx context.Context, tx *domain.Transaction) error
	UpdatePayment(ctx context.Context, saleID int32, paid, outstanding decimal.Decimal, status domain.PaymentStatus) error
	Delete(ctx context.Context, ids []int32) error
	// ListSalesForReseller returns the reseller's sales in the given statuses
	// with outstanding > 0, oldest first.
	ListSalesForReseller(ctx context.Context, resellerID int32, statuses []domain.PaymentStatus) ([]domain.Transaction, error)
	List(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)
	// SumOutstanding totals the outstanding of every sale of the reseller.
	SumOutstanding(ctx context.Context, resellerID int32) (decimal.Decimal, error)
}

type CompensationRepository interface {
	Create(ctx context.Context, c *domain.Compensation) error
	ListPending(ctx context.Context, limit int) ([]domain.Compensation, error)
	Update(ctx context.Context, c *domain.Compensation) error
}

type HistoryRepository interface {
	// Load returns an empty history for unknown sessions.
	Load(ctx context.Context, sessionID string) (*domain.History, error)
	Save(ctx context.Context, sessionID string, h *domain.History) error
}
