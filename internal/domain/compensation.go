package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CompensationKind string

const (
	CompensationBalanceAdjust CompensationKind = "balance_adjust"
	CompensationSalePayment   CompensationKind = "sale_payment"
)

type CompensationStatus string

const (
	CompensationStatusPending   CompensationStatus = "pending"
	CompensationStatusDone      CompensationStatus = "done"
	CompensationStatusAbandoned CompensationStatus = "abandoned"
)

// Compensation is a reversal that failed while rolling back a ledger
// operation and is queued for retry.
//
// For balance_adjust, Amount is added to the reseller balance. For
// sale_payment, the sale is restored to the New* side of Sale.
type Compensation struct {
	ID         string             `json:"id"`
	Kind       CompensationKind   `json:"kind"`
	Operation  string             `json:"operation"`
	ResellerID int32              `json:"reseller_id"`
	Amount     decimal.Decimal    `json:"amount"`
	Sale       *SaleDelta         `json:"sale,omitempty"`
	Status     CompensationStatus `json:"status"`
	Attempts   int                `json:"attempts"`
	LastError  string             `json:"last_error,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}
