package domain

import "github.com/shopspring/decimal"

// SaleDelta captures the payment state of a sale before and after a
// clearance touched it.
type SaleDelta struct {
	SaleID         int32           `json:"sale_id"`
	ResellerID     int32           `json:"reseller_id"`
	OldPaid        decimal.Decimal `json:"old_paid"`
	NewPaid        decimal.Decimal `json:"new_paid"`
	OldOutstanding decimal.Decimal `json:"old_outstanding"`
	NewOutstanding decimal.Decimal `json:"new_outstanding"`
	OldStatus      PaymentStatus   `json:"old_status"`
	NewStatus      PaymentStatus   `json:"new_status"`
	PaymentApplied decimal.Decimal `json:"payment_applied"`
}

// Inverse swaps the old and new states.
func (d SaleDelta) Inverse() SaleDelta {
	return SaleDelta{
		SaleID:         d.SaleID,
		ResellerID:     d.ResellerID,
		OldPaid:        d.NewPaid,
		NewPaid:        d.OldPaid,
		OldOutstanding: d.NewOutstanding,
		NewOutstanding: d.OldOutstanding,
		OldStatus:      d.NewStatus,
		NewStatus:      d.OldStatus,
		PaymentApplied: d.PaymentApplied.Neg(),
	}
}

// ApplyPayment returns the delta of paying amount into sale.
func ApplyPayment(sale *Transaction, amount decimal.Decimal) SaleDelta {
	newPaid := sale.Paid.Add(amount)
	newOutstanding := sale.Outstanding().Sub(amount)
	return SaleDelta{
		SaleID:         sale.ID,
		ResellerID:     sale.ResellerID,
		OldPaid:        sale.Paid,
		NewPaid:        newPaid,
		OldOutstanding: sale.Outstanding(),
		NewOutstanding: newOutstanding,
		OldStatus:      sale.PaymentStatus,
		NewStatus:      SettlementStatus(newPaid, newOutstanding),
		PaymentApplied: amount,
	}
}

// ReleasePayment returns the delta of taking back up to amount previously
// paid into sale. It never releases more than the sale has been paid.
func ReleasePayment(sale *Transaction, amount decimal.Decimal) SaleDelta {
	taken := decimal.Min(amount, sale.Paid)
	if taken.IsNegative() {
		taken = decimal.Zero
	}
	newPaid := sale.Paid.Sub(taken)
	newOutstanding := sale.Outstanding().Add(taken)
	return SaleDelta{
		SaleID:         sale.ID,
		ResellerID:     sale.ResellerID,
		OldPaid:        sale.Paid,
		NewPaid:        newPaid,
		OldOutstanding: sale.Outstanding(),
		NewOutstanding: newOutstanding,
		OldStatus:      sale.PaymentStatus,
		NewStatus:      SettlementStatus(newPaid, newOutstanding),
		PaymentApplied: taken.Neg(),
	}
}

// PlanAllocation spreads amount across sales in the given order, oldest
// first, paying each up to its outstanding. Sales with nothing outstanding
// are skipped. The unallocated remainder is returned alongside the deltas.
func PlanAllocation(sales []Transaction, amount decimal.Decimal) ([]SaleDelta, decimal.Decimal) {
	remaining := amount
	var deltas []SaleDelta
	for i := range sales {
		if !remaining.IsPositive() {
			break
		}
		sale := &sales[i]
		if sale.Sale == nil || !sale.Outstanding().IsPositive() {
			continue
		}
		apply := decimal.Min(remaining, sale.Outstanding())
		deltas = append(deltas, ApplyPayment(sale, apply))
		remaining = remaining.Sub(apply)
	}
	return deltas, remaining
}

// AllocationsFrom converts applied deltas into the allocation records kept
// on a clearance.
func AllocationsFrom(deltas []SaleDelta) []Allocation {
	allocs := make([]Allocation, 0, len(deltas))
	for _, d := range deltas {
		if d.PaymentApplied.IsPositive() {
			allocs = append(allocs, Allocation{SaleID: d.SaleID, Amount: d.PaymentApplied})
		}
	}
	return allocs
}
