package domain

import (
	"github.com/shopspring/decimal"
)

// PriceRange is one tier of a product's quantity pricing table.
// A nil MaxQty means the tier is open-ended.
type PriceRange struct {
	MinQty int32           `json:"min_qty"`
	MaxQty *int32          `json:"max_qty,omitempty"`
	Price  decimal.Decimal `json:"price"`
}

// Contains reports whether qty falls inside the tier.
func (r PriceRange) Contains(qty int32) bool {
	if qty < r.MinQty {
		return false
	}
	return r.MaxQty == nil || qty <= *r.MaxQty
}

type Product struct {
	ID          int32           `json:"id"`
	Name        string          `json:"name"`
	MRP         decimal.Decimal `json:"mrp"`
	PriceRanges []PriceRange    `json:"price_ranges"`
}

// PriceFor returns the unit price for qty: the first matching tier, or MRP
// when no tier applies.
func (p *Product) PriceFor(qty int32) decimal.Decimal {
	for _, r := range p.PriceRanges {
		if r.Contains(qty) {
			return r.Price
		}
	}
	return p.MRP
}
