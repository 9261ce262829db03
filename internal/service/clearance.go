package service

import (
	"context"
	"fmt"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/logger"
)

func (s *ledgerService) CreateClearance(ctx context.Context, in ClearanceInput) (*domain.Transaction, error) {
	logger.EnterMethod("ledgerService.CreateClearance", "resellerID", in.ResellerID, "paid", in.Paid.String())

	if !in.Paid.IsPositive() {
		return nil, ErrInvalidAmount
	}

	unlock := s.locks.lock(in.ResellerID)
	defer unlock()

	reseller, err := s.getReseller(ctx, in.ResellerID)
	if err != nil {
		return nil, err
	}
	_, outstanding, err := s.openDues(ctx, in.ResellerID)
	if err != nil {
		return nil, err
	}
	if !outstanding.IsPositive() {
		return nil, ErrNoOutstandingDues
	}
	if in.Paid.GreaterThan(outstanding) {
		return nil, fmt.Errorf("%w: paying %s against %s outstanding", ErrOverClearance, in.Paid.StringFixed(2), outstanding.StringFixed(2))
	}

	tx := domain.NewClearance(in.Date, in.ResellerID, in.Paid)
	tx.CreatedAt = s.now()

	const op = "create clearance"
	var balances []domain.BalanceDelta
	sg := s.newSaga(op)
	fail := func(err error) (*domain.Transaction, error) {
		err = sg.Abort(ctx, fmt.Errorf("failed to create clearance: %w", err))
		logger.ExitMethodWithError("ledgerService.CreateClearance", err)
		return nil, err
	}

	if err := sg.Run(ctx, s.adjustStep(op, in.ResellerID, in.Paid.Neg(), &balances)); err != nil {
		return fail(err)
	}
	balanceBefore := reseller.DueBalance
	if len(balances) > 0 {
		balanceBefore = balances[0].OldBalance
	}
	tx.PaymentStatus = domain.CalculateStatus(domain.TransactionTypeClearance, tx.Total(), tx.Paid, balanceBefore)

	deltas, err := s.allocate(ctx, sg, op, in.ResellerID, in.Paid)
	if err != nil {
		return fail(err)
	}
	tx.Clearance.Allocations = domain.AllocationsFrom(deltas)

	if err := sg.Run(ctx, s.insertStep(&tx)); err != nil {
		return fail(err)
	}

	s.record(ctx, domain.OperationAdd, nil, []domain.Transaction{tx.Clone()}, balances, deltas)
	logger.ExitMethod("ledgerService.CreateClearance", "id", tx.ID, "status", tx.PaymentStatus, "allocations", len(deltas))
	return &tx, nil
}
