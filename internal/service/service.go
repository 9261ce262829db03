package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/repository"
)

// Repositories groups the stores the ledger services work against.
type Repositories struct {
	Resellers     repository.ResellerRepository
	Products      repository.ProductRepository
	Transactions  repository.TransactionRepository
	Compensations repository.CompensationRepository
	History       repository.HistoryRepository

	// Locks is shared by every service built over these repositories. A nil
	// value gets a private set per service.
	Locks *ResellerLocks
}

// SaleInput creates a sale. A nil Price means the product's tiered price.
type SaleInput struct {
	Date       time.Time
	ResellerID int32
	ProductID  int32
	Qty        int32
	Price      *decimal.Decimal
	Paid       decimal.Decimal
}

type ClearanceInput struct {
	Date       time.Time
	ResellerID int32
	Paid       decimal.Decimal
}

// SaleEdit changes the non-nil fields of a sale.
type SaleEdit struct {
	Date       *time.Time
	ResellerID *int32
	ProductID  *int32
	Qty        *int32
	Price      *decimal.Decimal
	Paid       *decimal.Decimal
}

// ClearanceEdit changes the non-nil fields of a clearance. Sale-only fields
// do not exist here.
type ClearanceEdit struct {
	Date       *time.Time
	ResellerID *int32
	Paid       *decimal.Decimal
}

type ImportResult struct {
	Inserted []domain.Transaction `json:"inserted"`
	Skipped  []domain.SkippedRow  `json:"skipped"`
}

type DuplicateResult struct {
	Created  []domain.Transaction `json:"created"`
	Rejected []int32              `json:"rejected,omitempty"`
	Message  string               `json:"message,omitempty"`
}

type ResellerDues struct {
	Reseller       domain.Reseller `json:"reseller"`
	OutstandingDue decimal.Decimal `json:"outstanding_due"`
}

type BalanceDrift struct {
	ResellerID   int32           `json:"reseller_id"`
	ResellerName string          `json:"reseller_name"`
	Recorded     decimal.Decimal `json:"recorded"`
	Expected     decimal.Decimal `json:"expected"`
	Repaired     bool            `json:"repaired"`
}

// Difference is recorded minus expected.
func (d BalanceDrift) Difference() decimal.Decimal {
	return d.Recorded.Sub(d.Expected)
}

type RetrySummary struct {
	Attempted int
	Succeeded int
	Abandoned int
}

type LedgerService interface {
	CreateSale(ctx context.Context, in SaleInput) (*domain.Transaction, error)
	CreateClearance(ctx context.Context, in ClearanceInput) (*domain.Transaction, error)
	EditField(ctx context.Context, id int32, field, value string) (*domain.Transaction, error)
	EditSale(ctx context.Context, id int32, edit SaleEdit) (*domain.Transaction, error)
	EditClearance(ctx context.Context, id int32, edit ClearanceEdit) (*domain.Transaction, error)
	DeleteTransactions(ctx context.Context, ids []int32) error
	Import(ctx context.Context, rows []domain.ImportRow) (*ImportResult, error)
	Duplicate(ctx context.Context, ids []int32) (*DuplicateResult, error)

	GetTransaction(ctx context.Context, id int32) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)
	GetResellerDues(ctx context.Context, resellerID int32) (*ResellerDues, error)
}

type HistoryService interface {
	// Record pushes a completed operation onto the caller's undo stack.
	Record(ctx context.Context, op domain.Operation)
	Undo(ctx context.Context) (*domain.Operation, error)
	Redo(ctx context.Context) (*domain.Operation, error)
	History(ctx context.Context) (*domain.History, error)
}

type ExportService interface {
	// Export returns a header row followed by one row per transaction.
	Export(ctx context.Context, filter domain.TransactionFilter) ([][]string, error)
}

type AuditService interface {
	AuditBalances(ctx context.Context) ([]BalanceDrift, error)
}

type CompensationService interface {
	RetryPending(ctx context.Context) (RetrySummary, error)
}

type AlertService interface {
	CompensationFailed(ctx context.Context, c domain.Compensation) error
	CompensationAbandoned(ctx context.Context, c domain.Compensation) error
	BalanceDrift(ctx context.Context, drifts []BalanceDrift) error
}
