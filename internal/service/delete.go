package service

import (
	"context"
	"fmt"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/logger"
	"reseller-ledger-backend/internal/saga"
)

// DeleteTransactions removes a selection of transactions and backs their
// effect out of the reseller balances. Clearances are unwound before sales so
// a sale deleted together with the clearance that paid it leaves the balance
// exactly as it was before either was entered.
func (s *ledgerService) DeleteTransactions(ctx context.Context, ids []int32) error {
	logger.EnterMethod("ledgerService.DeleteTransactions", "count", len(ids))

	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return ErrEmptySelection
	}

	records, err := s.loadSelection(ctx, ids)
	if err != nil {
		return err
	}
	unlock := s.locks.lock(resellerIDs(records)...)
	defer unlock()

	if records, err = s.loadSelection(ctx, ids); err != nil {
		return err
	}
	sortOldestFirst(records)

	before := make([]domain.Transaction, 0, len(records))
	var clearances []domain.Transaction
	var saleIDs []int32
	for _, r := range records {
		before = append(before, r.Clone())
		if r.IsClearance() {
			clearances = append(clearances, r)
		} else {
			saleIDs = append(saleIDs, r.ID)
		}
	}

	const op = "delete transactions"
	var balances []domain.BalanceDelta
	var sales []domain.SaleDelta
	sg := s.newSaga(op, saga.LogOnly())
	fail := func(err error) error {
		err = sg.Abort(ctx, fmt.Errorf("failed to delete transactions: %w", err))
		logger.ExitMethodWithError("ledgerService.DeleteTransactions", err)
		return err
	}

	for i := range clearances {
		c := &clearances[i]
		released, err := s.release(ctx, sg, op, c)
		if err != nil {
			return fail(err)
		}
		sales = append(sales, released...)
		if err := s.adjust(ctx, sg, op, c.ResellerID, c.Paid, &balances); err != nil {
			return fail(err)
		}
	}

	// Sales may have been paid down by the releases above.
	current := clearances
	if len(saleIDs) > 0 {
		fresh, err := s.transactions.GetByIDs(ctx, saleIDs)
		if err != nil {
			return fail(err)
		}
		for _, sale := range fresh {
			if err := s.adjust(ctx, sg, op, sale.ResellerID, sale.Outstanding().Neg(), &balances); err != nil {
				return fail(err)
			}
		}
		current = append(append([]domain.Transaction{}, clearances...), fresh...)
	}

	if err := sg.Run(ctx, s.deleteStep(ids, current)); err != nil {
		return fail(err)
	}

	s.record(ctx, domain.OperationDelete, before, nil, balances, sales)
	logger.ExitMethod("ledgerService.DeleteTransactions", "deleted", len(ids))
	return nil
}

// deleteStep removes ids and re-inserts snapshot on compensation.
func (a *applier) deleteStep(ids []int32, snapshot []domain.Transaction) saga.Step {
	return saga.Step{
		Name: fmt.Sprintf("delete %d transaction(s)", len(ids)),
		Do: func(ctx context.Context) error {
			return a.transactions.Delete(ctx, ids)
		},
		Compensate: func(ctx context.Context) error {
			return a.transactions.Restore(ctx, snapshot)
		},
	}
}

// loadSelection fetches every id or fails with ErrTransactionNotFound.
func (a *applier) loadSelection(ctx context.Context, ids []int32) ([]domain.Transaction, error) {
	records, err := a.transactions.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(records) != len(ids) {
		found := make(map[int32]bool, len(records))
		for _, r := range records {
			found[r.ID] = true
		}
		var missing []int32
		for _, id := range ids {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrTransactionNotFound, missing)
	}
	return records, nil
}

func uniqueIDs(ids []int32) []int32 {
	seen := make(map[int32]bool, len(ids))
	out := make([]int32, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func resellerIDs(txs []domain.Transaction) []int32 {
	ids := make([]int32, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tx.ResellerID)
	}
	return ids
}
