package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reseller-ledger-backend/internal/logger"
	"reseller-ledger-backend/internal/repository"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

// Store bundles every PostgreSQL-backed repository over one connection pool.
type Store struct {
	db *sql.DB
	repository.ResellerRepository
	repository.ProductRepository
	repository.TransactionRepository
	repository.CompensationRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                     db,
		ResellerRepository:     NewResellerRepository(db),
		ProductRepository:      NewProductRepository(db),
		TransactionRepository:  NewTransactionRepository(db),
		CompensationRepository: NewCompensationRepository(db),
	}
}

// DB exposes the underlying pool for health checks and seeding.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Open connects with driver "postgres" (lib/pq) or "pgx" and retries the
// ping while the database is still starting up.
func Open(ctx context.Context, driver, dsn string, attempts int) (*sql.DB, error) {
	if driver != "postgres" && driver != "pgx" {
		return nil, fmt.Errorf("unsupported sql driver: %s", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for i := 1; ; i++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if i >= attempts {
			break
		}
		logger.Warn("Database not ready, retrying", "attempt", i, "error", err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	db.Close()
	return nil, fmt.Errorf("failed to ping database: %w", err)
}
