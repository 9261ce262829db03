package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/repository"
)

type TransactionRepository struct {
	mu      sync.Mutex
	records map[int32]domain.Transaction
	nextID  int32
}

func (r *TransactionRepository) insertLocked(tx *domain.Transaction) {
	r.nextID++
	tx.ID = r.nextID
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	r.records[tx.ID] = tx.Clone()
}

func (r *TransactionRepository) Create(_ context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(tx)
	return nil
}

func (r *TransactionRepository) CreateBatch(_ context.Context, txs []*domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range txs {
		r.insertLocked(tx)
	}
	return nil
}

func (r *TransactionRepository) Restore(_ context.Context, txs []domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range txs {
		if _, exists := r.records[tx.ID]; exists {
			return fmt.Errorf("transaction %d already exists", tx.ID)
		}
	}
	for _, tx := range txs {
		r.records[tx.ID] = tx.Clone()
		if tx.ID > r.nextID {
			r.nextID = tx.ID
		}
	}
	return nil
}

func (r *TransactionRepository) GetByID(_ context.Context, id int32) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := tx.Clone()
	return &c, nil
}

func (r *TransactionRepository) GetByIDs(_ context.Context, ids []int32) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transaction
	for _, id := range ids {
		if tx, ok := r.records[id]; ok {
			out = append(out, tx.Clone())
		}
	}
	sortByDate(out)
	return out, nil
}

func (r *TransactionRepository) Update(_ context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[tx.ID]; !ok {
		return repository.ErrNotFound
	}
	r.records[tx.ID] = tx.Clone()
	return nil
}

func (r *TransactionRepository) UpdatePayment(_ context.Context, saleID int32, paid, outstanding decimal.Decimal, status domain.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.records[saleID]
	if !ok || tx.Sale == nil {
		return repository.ErrNotFound
	}
	tx = tx.Clone()
	tx.Paid = paid
	tx.Sale.Outstanding = outstanding
	tx.PaymentStatus = status
	r.records[saleID] = tx
	return nil
}

func (r *TransactionRepository) Delete(_ context.Context, ids []int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.records, id)
	}
	return nil
}

func (r *TransactionRepository) ListSalesForReseller(_ context.Context, resellerID int32, statuses []domain.PaymentStatus) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range r.records {
		if tx.ResellerID != resellerID || tx.Sale == nil || !tx.Sale.Outstanding.IsPositive() {
			continue
		}
		if len(statuses) > 0 && !hasStatus(statuses, tx.PaymentStatus) {
			continue
		}
		out = append(out, tx.Clone())
	}
	sortByDate(out)
	return out, nil
}

func (r *TransactionRepository) List(_ context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range r.records {
		if filter.ResellerID != nil && tx.ResellerID != *filter.ResellerID {
			continue
		}
		if filter.Type != "" && tx.Type() != filter.Type {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, tx.PaymentStatus) {
			continue
		}
		if filter.From != nil && tx.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && tx.Date.After(*filter.To) {
			continue
		}
		out = append(out, tx.Clone())
	}
	sortByDate(out)
	return out, nil
}

func (r *TransactionRepository) SumOutstanding(_ context.Context, resellerID int32) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := decimal.Zero
	for _, tx := range r.records {
		if tx.ResellerID == resellerID && tx.Sale != nil {
			sum = sum.Add(tx.Sale.Outstanding)
		}
	}
	return sum, nil
}

// Count returns the number of stored transactions.
func (r *TransactionRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func hasStatus(statuses []domain.PaymentStatus, s domain.PaymentStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func sortByDate(txs []domain.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
}
