package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeSale      TransactionType = "Sale"
	TransactionTypeClearance TransactionType = "Clearance"
)

// ParseTransactionType accepts the display form used by imports and exports.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch TransactionType(s) {
	case TransactionTypeSale:
		return TransactionTypeSale, true
	case TransactionTypeClearance:
		return TransactionTypeClearance, true
	}
	return "", false
}

// SaleLine is the payload carried only by Sale transactions.
type SaleLine struct {
	ProductID   int32           `json:"product_id"`
	Qty         int32           `json:"qty"`
	Price       decimal.Decimal `json:"price"`
	Total       decimal.Decimal `json:"total"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// Allocation is the part of a clearance payment applied to one sale.
type Allocation struct {
	SaleID int32           `json:"sale_id"`
	Amount decimal.Decimal `json:"amount"`
}

// ClearanceDetails is the payload carried only by Clearance transactions.
type ClearanceDetails struct {
	Allocations []Allocation `json:"allocations"`
}

// Transaction is either a Sale or a Clearance. Exactly one of Sale and
// Clearance is set; the type is derived from which one.
type Transaction struct {
	ID            int32             `json:"id"`
	Date          time.Time         `json:"date"`
	ResellerID    int32             `json:"reseller_id"`
	Paid          decimal.Decimal   `json:"paid"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	CreatedAt     time.Time         `json:"created_at"`
	Sale          *SaleLine         `json:"sale,omitempty"`
	Clearance     *ClearanceDetails `json:"clearance,omitempty"`
}

// NewSale builds a sale with its derived total, outstanding and status.
func NewSale(date time.Time, resellerID, productID, qty int32, price, paid decimal.Decimal) Transaction {
	t := Transaction{
		Date:       date,
		ResellerID: resellerID,
		Paid:       paid,
		Sale: &SaleLine{
			ProductID: productID,
			Qty:       qty,
			Price:     price,
		},
	}
	t.Recalculate()
	return t
}

// NewClearance builds a clearance payment. Its status depends on the
// reseller balance and is set by the caller.
func NewClearance(date time.Time, resellerID int32, paid decimal.Decimal) Transaction {
	return Transaction{
		Date:       date,
		ResellerID: resellerID,
		Paid:       paid,
		Clearance:  &ClearanceDetails{},
	}
}

func (t *Transaction) Type() TransactionType {
	if t.Sale != nil {
		return TransactionTypeSale
	}
	return TransactionTypeClearance
}

func (t *Transaction) IsSale() bool {
	return t.Sale != nil
}

func (t *Transaction) IsClearance() bool {
	return t.Sale == nil
}

// Total is zero for clearances.
func (t *Transaction) Total() decimal.Decimal {
	if t.Sale == nil {
		return decimal.Zero
	}
	return t.Sale.Total
}

// Outstanding is zero for clearances.
func (t *Transaction) Outstanding() decimal.Decimal {
	if t.Sale == nil {
		return decimal.Zero
	}
	return t.Sale.Outstanding
}

// Recalculate refreshes total, outstanding and status of a sale from its
// qty, price and paid. It is a no-op for clearances.
func (t *Transaction) Recalculate() {
	if t.Sale == nil {
		return
	}
	t.Sale.Total = t.Sale.Price.Mul(decimal.NewFromInt32(t.Sale.Qty))
	t.Sale.Outstanding = t.Sale.Total.Sub(t.Paid)
	t.PaymentStatus = CalculateStatus(TransactionTypeSale, t.Sale.Total, t.Paid, decimal.Zero)
}

// AllocatedTotal sums the amounts this clearance applied to sales.
func (t *Transaction) AllocatedTotal() decimal.Decimal {
	sum := decimal.Zero
	if t.Clearance == nil {
		return sum
	}
	for _, a := range t.Clearance.Allocations {
		sum = sum.Add(a.Amount)
	}
	return sum
}

// Clone returns a deep copy.
func (t Transaction) Clone() Transaction {
	c := t
	if t.Sale != nil {
		s := *t.Sale
		c.Sale = &s
	}
	if t.Clearance != nil {
		allocs := make([]Allocation, len(t.Clearance.Allocations))
		copy(allocs, t.Clearance.Allocations)
		c.Clearance = &ClearanceDetails{Allocations: allocs}
	}
	return c
}

// TransactionFilter narrows transaction listings and exports. Zero values
// mean no restriction.
type TransactionFilter struct {
	ResellerID *int32
	Type       TransactionType
	Statuses   []PaymentStatus
	From       *time.Time
	To         *time.Time
}
