package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/logger"
	"reseller-ledger-backend/internal/repository"
	"reseller-ledger-backend/internal/saga"
)

const dateLayout = "2006-01-02"

// applier builds the saga steps shared by ledger operations and undo/redo.
type applier struct {
	resellers    repository.ResellerRepository
	transactions repository.TransactionRepository
	outbox       saga.FailureHandler
	locks        *ResellerLocks
}

type ledgerService struct {
	applier
	products      repository.ProductRepository
	history       HistoryService
	validate      *validator.Validate
	maxImportRows int
	now           func() time.Time
}

// NewLedgerService wires the transaction applier. Failed rollbacks are queued
// in the compensation outbox and reported through alerts.
func NewLedgerService(repos Repositories, history HistoryService, alerts AlertService, maxImportRows int) LedgerService {
	if maxImportRows <= 0 {
		maxImportRows = 5000
	}
	return &ledgerService{
		applier: applier{
			resellers:    repos.Resellers,
			transactions: repos.Transactions,
			outbox:       NewOutboxHandler(repos.Compensations, alerts),
			locks:        repos.locks(),
		},
		products:      repos.Products,
		history:       history,
		validate:      validator.New(),
		maxImportRows: maxImportRows,
		now:           time.Now,
	}
}

func (r Repositories) locks() *ResellerLocks {
	if r.Locks == nil {
		return NewResellerLocks()
	}
	return r.Locks
}

func (a *applier) newSaga(name string, opts ...saga.Option) *saga.Saga {
	return saga.New(name, append([]saga.Option{saga.OnCompensationFailure(a.outbox)}, opts...)...)
}

func (s *ledgerService) record(ctx context.Context, kind domain.OperationKind, before, after []domain.Transaction, balances []domain.BalanceDelta, sales []domain.SaleDelta) {
	if s.history == nil {
		return
	}
	s.history.Record(ctx, domain.Operation{
		ID:       uuid.NewString(),
		Kind:     kind,
		At:       s.now(),
		Before:   before,
		After:    after,
		Balances: balances,
		Sales:    sales,
	})
}

// adjustStep moves the reseller balance by delta and appends the applied
// change to applied.
func (a *applier) adjustStep(op string, resellerID int32, delta decimal.Decimal, applied *[]domain.BalanceDelta) saga.Step {
	return saga.Step{
		Name: fmt.Sprintf("adjust balance of reseller %d", resellerID),
		Do: func(ctx context.Context) error {
			old, err := a.resellers.AdjustBalance(ctx, resellerID, delta)
			if err != nil {
				return err
			}
			next := old.Add(delta)
			logger.BalanceChange(resellerID, old.String(), next.String(), op)
			*applied = append(*applied, domain.BalanceDelta{ResellerID: resellerID, OldBalance: old, NewBalance: next})
			return nil
		},
		Compensate: func(ctx context.Context) error {
			_, err := a.resellers.AdjustBalance(ctx, resellerID, delta.Neg())
			return err
		},
		Compensation: &domain.Compensation{
			Kind:       domain.CompensationBalanceAdjust,
			Operation:  op,
			ResellerID: resellerID,
			Amount:     delta.Neg(),
		},
	}
}

// salePaymentStep persists the new side of a sale delta.
func (a *applier) salePaymentStep(op string, d domain.SaleDelta) saga.Step {
	inverse := d.Inverse()
	return saga.Step{
		Name: fmt.Sprintf("update payment of sale %d", d.SaleID),
		Do: func(ctx context.Context) error {
			return a.transactions.UpdatePayment(ctx, d.SaleID, d.NewPaid, d.NewOutstanding, d.NewStatus)
		},
		Compensate: func(ctx context.Context) error {
			return a.transactions.UpdatePayment(ctx, d.SaleID, d.OldPaid, d.OldOutstanding, d.OldStatus)
		},
		Compensation: &domain.Compensation{
			Kind:       domain.CompensationSalePayment,
			Operation:  op,
			ResellerID: d.ResellerID,
			Amount:     inverse.PaymentApplied,
			Sale:       &inverse,
		},
	}
}

func (s *ledgerService) getReseller(ctx context.Context, id int32) (*domain.Reseller, error) {
	r, err := s.resellers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrResellerNotFound, id)
		}
		return nil, err
	}
	return r, nil
}

func (s *ledgerService) getProduct(ctx context.Context, id int32) (*domain.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, id)
		}
		return nil, err
	}
	return p, nil
}

func (s *ledgerService) getTransaction(ctx context.Context, id int32) (*domain.Transaction, error) {
	tx, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrTransactionNotFound, id)
		}
		return nil, err
	}
	return tx, nil
}

func (s *ledgerService) GetTransaction(ctx context.Context, id int32) (*domain.Transaction, error) {
	return s.getTransaction(ctx, id)
}

func (s *ledgerService) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	return s.transactions.List(ctx, filter)
}

func (s *ledgerService) GetResellerDues(ctx context.Context, resellerID int32) (*ResellerDues, error) {
	r, err := s.getReseller(ctx, resellerID)
	if err != nil {
		return nil, err
	}
	outstanding, err := s.transactions.SumOutstanding(ctx, resellerID)
	if err != nil {
		return nil, err
	}
	return &ResellerDues{Reseller: *r, OutstandingDue: outstanding}, nil
}

// openDues returns the reseller's payable sales, oldest first, and their
// combined outstanding.
func (s *ledgerService) openDues(ctx context.Context, resellerID int32) ([]domain.Transaction, decimal.Decimal, error) {
	sales, err := s.transactions.ListSalesForReseller(ctx, resellerID, domain.OpenSaleStatuses)
	if err != nil {
		return nil, decimal.Zero, err
	}
	total := decimal.Zero
	for _, sale := range sales {
		total = total.Add(sale.Outstanding())
	}
	return sales, total, nil
}

// adjust runs an adjustStep on sg, skipping zero deltas.
func (a *applier) adjust(ctx context.Context, sg *saga.Saga, op string, resellerID int32, delta decimal.Decimal, applied *[]domain.BalanceDelta) error {
	if delta.IsZero() {
		return nil
	}
	return sg.Run(ctx, a.adjustStep(op, resellerID, delta, applied))
}

// updateStep rewrites a record and puts the previous version back on
// compensation.
func (a *applier) updateStep(before, after *domain.Transaction) saga.Step {
	return saga.Step{
		Name: fmt.Sprintf("update transaction %d", after.ID),
		Do: func(ctx context.Context) error {
			return a.transactions.Update(ctx, after)
		},
		Compensate: func(ctx context.Context) error {
			return a.transactions.Update(ctx, before)
		},
	}
}
