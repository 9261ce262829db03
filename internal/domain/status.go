package domain

import "github.com/shopspring/decimal"

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "Pending"
	PaymentStatusPartiallyPaid     PaymentStatus = "Partially Paid"
	PaymentStatusFullyPaid         PaymentStatus = "Fully Paid"
	PaymentStatusDueCleared        PaymentStatus = "Due Cleared"
	PaymentStatusCompleteClearance PaymentStatus = "Complete Clearance"
	PaymentStatusPartialClearance  PaymentStatus = "Partial Clearance"
)

// OpenSaleStatuses are the sale statuses a clearance may still pay down.
var OpenSaleStatuses = []PaymentStatus{PaymentStatusPending, PaymentStatusPartiallyPaid}

// CalculateStatus derives the payment status of a transaction.
//
// Sales compare paid against total. Clearances compare the payment against
// the reseller balance before the payment is deducted.
func CalculateStatus(txType TransactionType, total, paid, resellerBalance decimal.Decimal) PaymentStatus {
	if txType == TransactionTypeClearance {
		if resellerBalance.Sub(paid).LessThanOrEqual(decimal.Zero) {
			return PaymentStatusCompleteClearance
		}
		return PaymentStatusPartialClearance
	}

	switch {
	case paid.GreaterThanOrEqual(total):
		return PaymentStatusFullyPaid
	case paid.GreaterThan(decimal.Zero):
		return PaymentStatusPartiallyPaid
	default:
		return PaymentStatusPending
	}
}

// SettlementStatus is the status of a sale after a clearance paid into it.
func SettlementStatus(paid, outstanding decimal.Decimal) PaymentStatus {
	switch {
	case outstanding.LessThanOrEqual(decimal.Zero):
		return PaymentStatusDueCleared
	case paid.GreaterThan(decimal.Zero):
		return PaymentStatusPartiallyPaid
	default:
		return PaymentStatusPending
	}
}
