package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/logger"
)

// Duplicate copies the selected sales as new, unpaid sales dated today.
// Clearances in the selection are rejected while the sales still go through.
func (s *ledgerService) Duplicate(ctx context.Context, ids []int32) (*DuplicateResult, error) {
	logger.EnterMethod("ledgerService.Duplicate", "count", len(ids))

	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}
	records, err := s.loadSelection(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortOldestFirst(records)

	result := &DuplicateResult{}
	var sources []domain.Transaction
	for _, r := range records {
		if r.IsClearance() {
			result.Rejected = append(result.Rejected, r.ID)
			continue
		}
		sources = append(sources, r)
	}
	if len(result.Rejected) > 0 {
		result.Message = fmt.Sprintf("%d clearance transaction(s) were not duplicated; only sales can be duplicated", len(result.Rejected))
	}
	if len(sources) == 0 {
		return result, ErrClearanceNotDuplicable
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	unlock := s.locks.lock(resellerIDs(sources)...)
	defer unlock()

	copies := make([]*domain.Transaction, 0, len(sources))
	deltas := make(map[int32]decimal.Decimal)
	for _, src := range sources {
		c := domain.NewSale(today, src.ResellerID, src.Sale.ProductID, src.Sale.Qty, src.Sale.Price, decimal.Zero)
		c.CreatedAt = now
		copies = append(copies, &c)
		deltas[c.ResellerID] = deltas[c.ResellerID].Add(c.Outstanding())
	}

	const op = "duplicate sales"
	var balances []domain.BalanceDelta
	sg := s.newSaga(op)
	fail := func(err error) (*DuplicateResult, error) {
		err = sg.Abort(ctx, fmt.Errorf("failed to duplicate sales: %w", err))
		logger.ExitMethodWithError("ledgerService.Duplicate", err)
		return nil, err
	}

	for _, id := range sortedKeys(deltas) {
		if err := s.adjust(ctx, sg, op, id, deltas[id], &balances); err != nil {
			return fail(err)
		}
	}
	if err := sg.Run(ctx, s.insertBatchStep(copies)); err != nil {
		return fail(err)
	}

	for _, c := range copies {
		result.Created = append(result.Created, c.Clone())
	}
	s.record(ctx, domain.OperationDuplicate, nil, cloneAll(result.Created), balances, nil)
	logger.ExitMethod("ledgerService.Duplicate", "created", len(result.Created), "rejected", len(result.Rejected))
	return result, nil
}
