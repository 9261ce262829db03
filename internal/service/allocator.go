package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/logger"
	"reseller-ledger-backend/internal/repository"
	"reseller-ledger-backend/internal/saga"
)

// allocate pays amount into the reseller's open sales oldest first, one
// saga step per sale. Any excess over the open dues is left unallocated.
func (s *ledgerService) allocate(ctx context.Context, sg *saga.Saga, op string, resellerID int32, amount decimal.Decimal) ([]domain.SaleDelta, error) {
	sales, err := s.transactions.ListSalesForReseller(ctx, resellerID, domain.OpenSaleStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to list open sales: %w", err)
	}

	deltas, remaining := domain.PlanAllocation(sales, amount)
	for _, d := range deltas {
		if err := sg.Run(ctx, s.salePaymentStep(op, d)); err != nil {
			return nil, err
		}
	}
	if remaining.IsPositive() {
		logger.Warn("Clearance exceeds open dues, excess left unallocated", "reseller_id", resellerID, "excess", remaining.String())
	}
	return deltas, nil
}

// release takes back the allocations of a clearance, oldest sale first.
// Sales that no longer exist are skipped.
func (s *ledgerService) release(ctx context.Context, sg *saga.Saga, op string, clearance *domain.Transaction) ([]domain.SaleDelta, error) {
	if clearance.Clearance == nil || len(clearance.Clearance.Allocations) == 0 {
		return nil, nil
	}

	ids := make([]int32, 0, len(clearance.Clearance.Allocations))
	amounts := make(map[int32]decimal.Decimal, len(clearance.Clearance.Allocations))
	for _, a := range clearance.Clearance.Allocations {
		if _, ok := amounts[a.SaleID]; !ok {
			ids = append(ids, a.SaleID)
		}
		amounts[a.SaleID] = amounts[a.SaleID].Add(a.Amount)
	}

	sales, err := s.transactions.GetByIDs(ctx, ids)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load allocated sales: %w", err)
	}
	sortOldestFirst(sales)

	var deltas []domain.SaleDelta
	for i := range sales {
		sale := &sales[i]
		if !sale.IsSale() {
			continue
		}
		d := domain.ReleasePayment(sale, amounts[sale.ID])
		if d.PaymentApplied.IsZero() {
			continue
		}
		if err := sg.Run(ctx, s.salePaymentStep(op, d)); err != nil {
			return nil, err
		}
		deltas = append(deltas, d)
	}
	if len(sales) < len(ids) {
		logger.Warn("Allocated sales missing during release", "clearance_id", clearance.ID, "expected", len(ids), "found", len(sales))
	}
	return deltas, nil
}

func sortOldestFirst(txs []domain.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool { return olderThan(txs[i], txs[j]) })
}

func olderThan(a, b domain.Transaction) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.ID < b.ID
}
