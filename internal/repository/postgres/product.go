package postgres

import (
	"context"
	"database/sql"
	"errors"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/repository"
)

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) repository.ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) GetByID(ctx context.Context, id int32) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx, `SELECT id, name, mrp FROM products WHERE id = $1`, id).Scan(&p.ID, &p.Name, &p.MRP)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT product_id, min_qty, max_qty, price FROM product_price_ranges WHERE product_id = $1 ORDER BY min_qty`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ranges, err := scanPriceRanges(rows)
	if err != nil {
		return nil, err
	}
	p.PriceRanges = ranges[p.ID]
	return &p, nil
}

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, mrp FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.MRP); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rangeRows, err := r.db.QueryContext(ctx, `SELECT product_id, min_qty, max_qty, price FROM product_price_ranges ORDER BY product_id, min_qty`)
	if err != nil {
		return nil, err
	}
	defer rangeRows.Close()

	ranges, err := scanPriceRanges(rangeRows)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].PriceRanges = ranges[products[i].ID]
	}
	return products, nil
}

func scanPriceRanges(rows *sql.Rows) (map[int32][]domain.PriceRange, error) {
	ranges := make(map[int32][]domain.PriceRange)
	for rows.Next() {
		var productID int32
		var pr domain.PriceRange
		var maxQty sql.NullInt32
		if err := rows.Scan(&productID, &pr.MinQty, &maxQty, &pr.Price); err != nil {
			return nil, err
		}
		if maxQty.Valid {
			v := maxQty.Int32
			pr.MaxQty = &v
		}
		ranges[productID] = append(ranges[productID], pr)
	}
	return ranges, rows.Err()
}
