package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/logger"
)

// Seed upserts resellers and products with their price tiers. Existing
// balances are left untouched.
func Seed(ctx context.Context, db *sql.DB, resellers []domain.Reseller, products []domain.Product) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range resellers {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO resellers (id, name, email, due_balance) VALUES ($1, $2, NULLIF($3, ''), $4)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email`,
			r.ID, r.Name, r.Email, r.DueBalance)
		if err != nil {
			return fmt.Errorf("failed to seed reseller %q: %w", r.Name, err)
		}
	}

	for _, p := range products {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO products (id, name, mrp) VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, mrp = EXCLUDED.mrp`,
			p.ID, p.Name, p.MRP)
		if err != nil {
			return fmt.Errorf("failed to seed product %q: %w", p.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM product_price_ranges WHERE product_id = $1`, p.ID); err != nil {
			return err
		}
		for _, pr := range p.PriceRanges {
			var maxQty sql.NullInt32
			if pr.MaxQty != nil {
				maxQty = sql.NullInt32{Int32: *pr.MaxQty, Valid: true}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO product_price_ranges (product_id, min_qty, max_qty, price) VALUES ($1, $2, $3, $4)`,
				p.ID, pr.MinQty, maxQty, pr.Price)
			if err != nil {
				return fmt.Errorf("failed to seed price range for %q: %w", p.Name, err)
			}
		}
	}

	// Explicit ids bypass the SERIAL sequences
	for _, table := range []string{"resellers", "products"} {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), GREATEST((SELECT MAX(id) FROM %[1]s), 1))`, table))
		if err != nil {
			return fmt.Errorf("failed to advance %s sequence: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	logger.Info("Seed data loaded", "resellers", len(resellers), "products", len(products))
	return nil
}
