package service

import (
	"context"
	"fmt"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/logger"
	"reseller-ledger-backend/internal/saga"
)

func (s *ledgerService) CreateSale(ctx context.Context, in SaleInput) (*domain.Transaction, error) {
	logger.EnterMethod("ledgerService.CreateSale", "resellerID", in.ResellerID, "productID", in.ProductID, "qty", in.Qty)

	if in.Qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if in.Paid.IsNegative() || (in.Price != nil && in.Price.IsNegative()) {
		return nil, ErrInvalidAmount
	}

	unlock := s.locks.lock(in.ResellerID)
	defer unlock()

	if _, err := s.getReseller(ctx, in.ResellerID); err != nil {
		return nil, err
	}
	product, err := s.getProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}

	price := product.PriceFor(in.Qty)
	if in.Price != nil {
		price = *in.Price
	}
	tx := domain.NewSale(in.Date, in.ResellerID, in.ProductID, in.Qty, price, in.Paid)
	if tx.Paid.GreaterThan(tx.Total()) {
		return nil, ErrPaidExceedsTotal
	}
	tx.CreatedAt = s.now()

	const op = "create sale"
	var balances []domain.BalanceDelta
	sg := s.newSaga(op)
	steps := []saga.Step{
		s.adjustStep(op, tx.ResellerID, tx.Outstanding(), &balances),
		s.insertStep(&tx),
	}
	for _, step := range steps {
		if err := sg.Run(ctx, step); err != nil {
			err = sg.Abort(ctx, fmt.Errorf("failed to create sale: %w", err))
			logger.ExitMethodWithError("ledgerService.CreateSale", err)
			return nil, err
		}
	}

	s.record(ctx, domain.OperationAdd, nil, []domain.Transaction{tx.Clone()}, balances, nil)
	logger.ExitMethod("ledgerService.CreateSale", "id", tx.ID, "total", tx.Total().String(), "status", tx.PaymentStatus)
	return &tx, nil
}

// insertStep creates tx and deletes it again on compensation.
func (s *ledgerService) insertStep(tx *domain.Transaction) saga.Step {
	return saga.Step{
		Name: "insert transaction",
		Do: func(ctx context.Context) error {
			return s.transactions.Create(ctx, tx)
		},
		Compensate: func(ctx context.Context) error {
			return s.transactions.Delete(ctx, []int32{tx.ID})
		},
	}
}
