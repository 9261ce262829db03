package domain

import "github.com/shopspring/decimal"

// ImportRow is one spreadsheet row of a batch import. Members and products
// are referenced by exact, case-sensitive name.
type ImportRow struct {
	Date            string           `json:"date" validate:"required"`
	MemberName      string           `json:"member_name" validate:"required"`
	ProductName     string           `json:"product_name"`
	Qty             int32            `json:"qty"`
	// Price is nil when the row leaves it blank; the product's tier price applies.
	Price           *decimal.Decimal `json:"price,omitempty"`
	Paid            decimal.Decimal  `json:"paid"`
	TransactionType string           `json:"transaction_type" validate:"required,oneof=Sale Clearance"`
}

// SkippedRow explains why an import row was not inserted. Row is 1-based.
type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
