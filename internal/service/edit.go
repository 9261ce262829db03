package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/logger"
)

// Editable field names accepted by EditField.
const (
	FieldDate      = "date"
	FieldMemberID  = "member_id"
	FieldProductID = "product_id"
	FieldQty       = "qty"
	FieldPrice     = "price"
	FieldPaid      = "paid"
)

// Derived or fixed columns that exist on a transaction but cannot be edited.
var derivedFields = map[string]bool{
	"id":               true,
	"total":            true,
	"outstanding":      true,
	"payment_status":   true,
	"transaction_type": true,
	"created_at":       true,
}

var saleOnlyFields = map[string]bool{
	FieldProductID: true,
	FieldQty:       true,
	FieldPrice:     true,
}

// EditField changes one field of a transaction from its string form.
func (s *ledgerService) EditField(ctx context.Context, id int32, field, value string) (*domain.Transaction, error) {
	field = strings.ToLower(strings.TrimSpace(field))
	value = strings.TrimSpace(value)

	tx, err := s.getTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case derivedFields[field]:
		return nil, fmt.Errorf("%w: %s", ErrReadOnlyField, field)
	case tx.IsClearance() && saleOnlyFields[field]:
		return nil, fmt.Errorf("%w: %s cannot be edited on a clearance", ErrReadOnlyField, field)
	}

	if tx.IsClearance() {
		var edit ClearanceEdit
		switch field {
		case FieldDate:
			d, err := parseDateValue(value)
			if err != nil {
				return nil, err
			}
			edit.Date = &d
		case FieldMemberID:
			v, err := parseInt32Value(field, value)
			if err != nil {
				return nil, err
			}
			edit.ResellerID = &v
		case FieldPaid:
			v, err := parseDecimalValue(field, value)
			if err != nil {
				return nil, err
			}
			edit.Paid = &v
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		return s.EditClearance(ctx, id, edit)
	}

	var edit SaleEdit
	switch field {
	case FieldDate:
		d, err := parseDateValue(value)
		if err != nil {
			return nil, err
		}
		edit.Date = &d
	case FieldMemberID, FieldProductID, FieldQty:
		v, err := parseInt32Value(field, value)
		if err != nil {
			return nil, err
		}
		switch field {
		case FieldMemberID:
			edit.ResellerID = &v
		case FieldProductID:
			edit.ProductID = &v
		default:
			edit.Qty = &v
		}
	case FieldPrice, FieldPaid:
		v, err := parseDecimalValue(field, value)
		if err != nil {
			return nil, err
		}
		if field == FieldPrice {
			edit.Price = &v
		} else {
			edit.Paid = &v
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return s.EditSale(ctx, id, edit)
}

func (s *ledgerService) EditSale(ctx context.Context, id int32, edit SaleEdit) (*domain.Transaction, error) {
	logger.EnterMethod("ledgerService.EditSale", "id", id)

	current, err := s.getTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsSale() {
		return nil, fmt.Errorf("%w: transaction %d is a clearance", ErrReadOnlyField, id)
	}

	targetReseller := current.ResellerID
	if edit.ResellerID != nil {
		targetReseller = *edit.ResellerID
	}
	unlock := s.locks.lock(current.ResellerID, targetReseller)
	defer unlock()

	// Reload under the lock so the balance math sees committed state.
	if current, err = s.getTransaction(ctx, id); err != nil {
		return nil, err
	}
	before := current.Clone()
	after := current.Clone()

	if edit.Date != nil {
		after.Date = *edit.Date
	}
	if edit.ResellerID != nil && *edit.ResellerID != before.ResellerID {
		if _, err := s.getReseller(ctx, *edit.ResellerID); err != nil {
			return nil, err
		}
		after.ResellerID = *edit.ResellerID
	}

	repriced := false
	if edit.ProductID != nil && *edit.ProductID != before.Sale.ProductID {
		after.Sale.ProductID = *edit.ProductID
		repriced = true
	}
	if edit.Qty != nil {
		if *edit.Qty <= 0 {
			return nil, ErrInvalidQuantity
		}
		if *edit.Qty != before.Sale.Qty {
			after.Sale.Qty = *edit.Qty
			repriced = true
		}
	}
	amountsChanged := repriced
	if edit.Price != nil {
		if edit.Price.IsNegative() {
			return nil, ErrInvalidAmount
		}
		after.Sale.Price = *edit.Price
		amountsChanged = true
	} else if repriced {
		product, err := s.getProduct(ctx, after.Sale.ProductID)
		if err != nil {
			return nil, err
		}
		after.Sale.Price = product.PriceFor(after.Sale.Qty)
	}
	if edit.Paid != nil {
		if edit.Paid.IsNegative() {
			return nil, ErrInvalidAmount
		}
		after.Paid = *edit.Paid
		amountsChanged = true
	}
	if amountsChanged {
		after.Recalculate()
		if after.Paid.GreaterThan(after.Total()) {
			return nil, ErrPaidExceedsTotal
		}
	}

	const op = "edit sale"
	var balances []domain.BalanceDelta
	sg := s.newSaga(op)
	fail := func(err error) (*domain.Transaction, error) {
		err = sg.Abort(ctx, fmt.Errorf("failed to edit sale %d: %w", id, err))
		logger.ExitMethodWithError("ledgerService.EditSale", err)
		return nil, err
	}

	if after.ResellerID == before.ResellerID {
		diff := after.Outstanding().Sub(before.Outstanding())
		if err := s.adjust(ctx, sg, op, after.ResellerID, diff, &balances); err != nil {
			return fail(err)
		}
	} else {
		if err := s.adjust(ctx, sg, op, before.ResellerID, before.Outstanding().Neg(), &balances); err != nil {
			return fail(err)
		}
		if err := s.adjust(ctx, sg, op, after.ResellerID, after.Outstanding(), &balances); err != nil {
			return fail(err)
		}
	}
	if err := sg.Run(ctx, s.updateStep(&before, &after)); err != nil {
		return fail(err)
	}

	s.record(ctx, domain.OperationEdit, []domain.Transaction{before}, []domain.Transaction{after.Clone()}, balances, nil)
	logger.ExitMethod("ledgerService.EditSale", "id", id, "status", after.PaymentStatus)
	return &after, nil
}

func (s *ledgerService) EditClearance(ctx context.Context, id int32, edit ClearanceEdit) (*domain.Transaction, error) {
	logger.EnterMethod("ledgerService.EditClearance", "id", id)

	current, err := s.getTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsClearance() {
		return nil, fmt.Errorf("%w: transaction %d is a sale", ErrReadOnlyField, id)
	}

	targetReseller := current.ResellerID
	if edit.ResellerID != nil {
		targetReseller = *edit.ResellerID
	}
	unlock := s.locks.lock(current.ResellerID, targetReseller)
	defer unlock()

	if current, err = s.getTransaction(ctx, id); err != nil {
		return nil, err
	}
	before := current.Clone()
	after := current.Clone()

	if edit.Date != nil {
		after.Date = *edit.Date
	}
	if edit.Paid != nil {
		if !edit.Paid.IsPositive() {
			return nil, ErrInvalidAmount
		}
		after.Paid = *edit.Paid
	}
	moved := edit.ResellerID != nil && *edit.ResellerID != before.ResellerID
	if moved {
		after.ResellerID = *edit.ResellerID
	}
	rebook := moved || !after.Paid.Equal(before.Paid)

	const op = "edit clearance"
	var balances []domain.BalanceDelta
	var sales []domain.SaleDelta
	sg := s.newSaga(op)
	fail := func(err error) (*domain.Transaction, error) {
		err = sg.Abort(ctx, fmt.Errorf("failed to edit clearance %d: %w", id, err))
		logger.ExitMethodWithError("ledgerService.EditClearance", err)
		return nil, err
	}

	if rebook {
		target, err := s.getReseller(ctx, after.ResellerID)
		if err != nil {
			return nil, err
		}
		// Balance of the target reseller as if this clearance had never been paid.
		balanceBefore := target.DueBalance
		if !moved {
			balanceBefore = balanceBefore.Add(before.Paid)
		}
		if balanceBefore.Sub(after.Paid).IsNegative() {
			return nil, fmt.Errorf("%w: balance %s cannot absorb a payment of %s", ErrNegativeBalance, balanceBefore.StringFixed(2), after.Paid.StringFixed(2))
		}

		released, err := s.release(ctx, sg, op, &before)
		if err != nil {
			return fail(err)
		}
		sales = append(sales, released...)

		if moved {
			if err := s.adjust(ctx, sg, op, before.ResellerID, before.Paid, &balances); err != nil {
				return fail(err)
			}
			if err := s.adjust(ctx, sg, op, after.ResellerID, after.Paid.Neg(), &balances); err != nil {
				return fail(err)
			}
		} else {
			diff := after.Paid.Sub(before.Paid)
			if err := s.adjust(ctx, sg, op, after.ResellerID, diff.Neg(), &balances); err != nil {
				return fail(err)
			}
		}
		after.PaymentStatus = domain.CalculateStatus(domain.TransactionTypeClearance, decimal.Zero, after.Paid, balanceBefore)

		allocated, err := s.allocate(ctx, sg, op, after.ResellerID, after.Paid)
		if err != nil {
			return fail(err)
		}
		sales = append(sales, allocated...)
		after.Clearance.Allocations = domain.AllocationsFrom(allocated)
	}

	if err := sg.Run(ctx, s.updateStep(&before, &after)); err != nil {
		return fail(err)
	}

	s.record(ctx, domain.OperationEdit, []domain.Transaction{before}, []domain.Transaction{after.Clone()}, balances, sales)
	logger.ExitMethod("ledgerService.EditClearance", "id", id, "status", after.PaymentStatus)
	return &after, nil
}

func parseDateValue(value string) (time.Time, error) {
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidFieldValue)
	}
	return d, nil
}

func parseInt32Value(field, value string) (int32, error) {
	v, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalidFieldValue, field)
	}
	return int32(v), nil
}

func parseDecimalValue(field, value string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s must be a number", ErrInvalidFieldValue, field)
	}
	return v, nil
}
