package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reseller is a portal member that buys products on credit. DueBalance is the
// running amount the reseller still owes.
type Reseller struct {
	ID         int32           `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email,omitempty"`
	DueBalance decimal.Decimal `json:"due_balance"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// BalanceDelta records one balance mutation so it can be reversed or replayed.
type BalanceDelta struct {
	ResellerID int32           `json:"reseller_id"`
	OldBalance decimal.Decimal `json:"old_balance"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// Amount returns the signed change applied by the delta.
func (d BalanceDelta) Amount() decimal.Decimal {
	return d.NewBalance.Sub(d.OldBalance)
}
