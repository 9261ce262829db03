// Package memory keeps the ledger in process memory. It backs local demo
// runs (database driver "memory") and service tests.
package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/repository"
)

type Store struct {
	Resellers     *ResellerRepository
	Products      *ProductRepository
	Transactions  *TransactionRepository
	Compensations *CompensationRepository
	History       *HistoryRepository
}

func NewStore() *Store {
	return &Store{
		Resellers:     &ResellerRepository{resellers: make(map[int32]domain.Reseller)},
		Products:      &ProductRepository{products: make(map[int32]domain.Product)},
		Transactions:  &TransactionRepository{records: make(map[int32]domain.Transaction)},
		Compensations: &CompensationRepository{items: make(map[string]domain.Compensation)},
		History:       NewHistoryRepository(),
	}
}

type seedFile struct {
	Resellers []struct {
		ID         int32  `yaml:"id"`
		Name       string `yaml:"name"`
		Email      string `yaml:"email"`
		DueBalance string `yaml:"due_balance"`
	} `yaml:"resellers"`
	Products []struct {
		ID          int32  `yaml:"id"`
		Name        string `yaml:"name"`
		MRP         string `yaml:"mrp"`
		PriceRanges []struct {
			MinQty int32  `yaml:"min_qty"`
			MaxQty *int32 `yaml:"max_qty"`
			Price  string `yaml:"price"`
		} `yaml:"price_ranges"`
	} `yaml:"products"`
}

// LoadSeed populates resellers and products from a YAML file.
func (s *Store) LoadSeed(path string) error {
	resellers, products, err := ReadSeed(path)
	if err != nil {
		return err
	}
	for _, r := range resellers {
		s.Resellers.Add(r)
	}
	for _, p := range products {
		s.Products.Add(p)
	}
	return nil
}

// ReadSeed parses a YAML seed file. Amounts are decimal strings.
func ReadSeed(path string) ([]domain.Reseller, []domain.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	resellers := make([]domain.Reseller, 0, len(seed.Resellers))
	for _, r := range seed.Resellers {
		balance, err := parseAmount(r.DueBalance)
		if err != nil {
			return nil, nil, fmt.Errorf("reseller %q: %w", r.Name, err)
		}
		resellers = append(resellers, domain.Reseller{ID: r.ID, Name: r.Name, Email: r.Email, DueBalance: balance})
	}

	products := make([]domain.Product, 0, len(seed.Products))
	for _, p := range seed.Products {
		mrp, err := parseAmount(p.MRP)
		if err != nil {
			return nil, nil, fmt.Errorf("product %q: %w", p.Name, err)
		}
		product := domain.Product{ID: p.ID, Name: p.Name, MRP: mrp}
		for _, pr := range p.PriceRanges {
			price, err := parseAmount(pr.Price)
			if err != nil {
				return nil, nil, fmt.Errorf("product %q: %w", p.Name, err)
			}
			product.PriceRanges = append(product.PriceRanges, domain.PriceRange{MinQty: pr.MinQty, MaxQty: pr.MaxQty, Price: price})
		}
		products = append(products, product)
	}
	return resellers, products, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// ResellerRepository

type ResellerRepository struct {
	mu        sync.Mutex
	resellers map[int32]domain.Reseller
}

// Add inserts or replaces a reseller.
func (r *ResellerRepository) Add(res domain.Reseller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res.UpdatedAt.IsZero() {
		res.UpdatedAt = time.Now()
	}
	r.resellers[res.ID] = res
}

func (r *ResellerRepository) GetByID(_ context.Context, id int32) (*domain.Reseller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resellers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &res, nil
}

func (r *ResellerRepository) List(_ context.Context) ([]domain.Reseller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Reseller, 0, len(r.resellers))
	for _, res := range r.resellers {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *ResellerRepository) AdjustBalance(_ context.Context, id int32, delta decimal.Decimal) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resellers[id]
	if !ok {
		return decimal.Zero, repository.ErrNotFound
	}
	old := res.DueBalance
	res.DueBalance = old.Add(delta)
	res.UpdatedAt = time.Now()
	r.resellers[id] = res
	return old, nil
}

func (r *ResellerRepository) SetBalance(_ context.Context, id int32, value decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resellers[id]
	if !ok {
		return repository.ErrNotFound
	}
	res.DueBalance = value
	res.UpdatedAt = time.Now()
	r.resellers[id] = res
	return nil
}

// ProductRepository

type ProductRepository struct {
	mu       sync.Mutex
	products map[int32]domain.Product
}

// Add inserts or replaces a product. Price ranges are kept ordered by MinQty.
func (r *ProductRepository) Add(p domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.SliceStable(p.PriceRanges, func(i, j int) bool { return p.PriceRanges[i].MinQty < p.PriceRanges[j].MinQty })
	r.products[p.ID] = p
}

func (r *ProductRepository) GetByID(_ context.Context, id int32) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *ProductRepository) List(_ context.Context) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CompensationRepository

type CompensationRepository struct {
	mu    sync.Mutex
	items map[string]domain.Compensation
}

func (r *CompensationRepository) Create(_ context.Context, c *domain.Compensation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.items[c.ID] = *c
	return nil
}

func (r *CompensationRepository) ListPending(_ context.Context, limit int) ([]domain.Compensation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Compensation
	for _, c := range r.items {
		if c.Status == domain.CompensationStatusPending {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *CompensationRepository) Update(_ context.Context, c *domain.Compensation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[c.ID]; !ok {
		return repository.ErrNotFound
	}
	c.UpdatedAt = time.Now()
	r.items[c.ID] = *c
	return nil
}

// All returns every compensation regardless of status.
func (r *CompensationRepository) All() []domain.Compensation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Compensation, 0, len(r.items))
	for _, c := range r.items {
		out = append(out, c)
	}
	return out
}
