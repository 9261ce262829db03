package service_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/repository"
	"reseller-ledger-backend/internal/repository/memory"
	"reseller-ledger-backend/internal/service"
)

var errBoom = errors.New("boom")

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func day(n int) time.Time {
	return time.Date(2024, time.January, n, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	ctx     context.Context
	store   *memory.Store
	repos   service.Repositories
	alerts  *MockAlertService
	ledger  service.LedgerService
	history service.HistoryService
}

type fixtureConfig struct {
	repos service.Repositories
	depth int
}

type fixtureOption func(*fixtureConfig)

func withTransactions(f *flakyTransactions) fixtureOption {
	return func(c *fixtureConfig) {
		f.TransactionRepository = c.repos.Transactions
		c.repos.Transactions = f
	}
}

func withResellers(f *flakyResellers) fixtureOption {
	return func(c *fixtureConfig) {
		f.ResellerRepository = c.repos.Resellers
		c.repos.Resellers = f
	}
}

func withDepth(n int) fixtureOption {
	return func(c *fixtureConfig) { c.depth = n }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	store := memory.NewStore()
	store.Resellers.Add(domain.Reseller{ID: 1, Name: "Alice", Email: "alice@example.com"})
	store.Resellers.Add(domain.Reseller{ID: 2, Name: "Bob", Email: "bob@example.com"})
	upTo9 := int32(9)
	store.Products.Add(domain.Product{
		ID:   1,
		Name: "Widget",
		MRP:  d("100"),
		PriceRanges: []domain.PriceRange{
			{MinQty: 1, MaxQty: &upTo9, Price: d("90")},
			{MinQty: 10, Price: d("80")},
		},
	})
	store.Products.Add(domain.Product{ID: 2, Name: "Gadget", MRP: d("50")})

	cfg := &fixtureConfig{
		repos: service.Repositories{
			Resellers:     store.Resellers,
			Products:      store.Products,
			Transactions:  store.Transactions,
			Compensations: store.Compensations,
			History:       store.History,
			Locks:         service.NewResellerLocks(),
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	alerts := new(MockAlertService)
	alerts.On("CompensationFailed", mock.Anything, mock.Anything).Return(nil).Maybe()
	alerts.On("CompensationAbandoned", mock.Anything, mock.Anything).Return(nil).Maybe()
	alerts.On("BalanceDrift", mock.Anything, mock.Anything).Return(nil).Maybe()

	history := service.NewHistoryService(cfg.repos, alerts, cfg.depth)
	return &fixture{
		ctx:     service.WithSession(context.Background(), "session-"+t.Name()),
		store:   store,
		repos:   cfg.repos,
		alerts:  alerts,
		ledger:  service.NewLedgerService(cfg.repos, history, alerts, 100),
		history: history,
	}
}

// sale records a sale of product 1 at a fixed unit price.
func (f *fixture) sale(t *testing.T, resellerID int32, date time.Time, price, paid string) *domain.Transaction {
	t.Helper()
	p := d(price)
	tx, err := f.ledger.CreateSale(f.ctx, service.SaleInput{
		Date:       date,
		ResellerID: resellerID,
		ProductID:  1,
		Qty:        1,
		Price:      &p,
		Paid:       d(paid),
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) clearance(t *testing.T, resellerID int32, date time.Time, paid string) *domain.Transaction {
	t.Helper()
	tx, err := f.ledger.CreateClearance(f.ctx, service.ClearanceInput{Date: date, ResellerID: resellerID, Paid: d(paid)})
	require.NoError(t, err)
	return tx
}

// seedThreeSales books unpaid sales of 100, 200 and 300 for Alice on
// consecutive days.
func (f *fixture) seedThreeSales(t *testing.T) (s1, s2, s3 *domain.Transaction) {
	t.Helper()
	return f.sale(t, 1, day(1), "100", "0"), f.sale(t, 1, day(2), "200", "0"), f.sale(t, 1, day(3), "300", "0")
}

func (f *fixture) balance(t *testing.T, resellerID int32) decimal.Decimal {
	t.Helper()
	r, err := f.store.Resellers.GetByID(context.Background(), resellerID)
	require.NoError(t, err)
	return r.DueBalance
}

func (f *fixture) get(t *testing.T, id int32) *domain.Transaction {
	t.Helper()
	tx, err := f.store.Transactions.GetByID(context.Background(), id)
	require.NoError(t, err)
	return tx
}

// snapshot renders balances and every stored transaction so two ledger
// states can be compared.
func (f *fixture) snapshot(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	var lines []string

	resellers, err := f.store.Resellers.List(ctx)
	require.NoError(t, err)
	for _, r := range resellers {
		lines = append(lines, fmt.Sprintf("reseller %d balance %s", r.ID, r.DueBalance.String()))
	}

	txs, err := f.store.Transactions.List(ctx, domain.TransactionFilter{})
	require.NoError(t, err)
	sort.Slice(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })
	for _, tx := range txs {
		line := fmt.Sprintf("tx %d %s %s reseller %d paid %s status %s total %s outstanding %s",
			tx.ID, tx.Type(), tx.Date.Format("2006-01-02"), tx.ResellerID, tx.Paid.String(), tx.PaymentStatus,
			tx.Total().String(), tx.Outstanding().String())
		if tx.Clearance != nil {
			for _, a := range tx.Clearance.Allocations {
				line += fmt.Sprintf(" alloc %d=%s", a.SaleID, a.Amount.String())
			}
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "want %s, got %s %v", want, got.String(), msgAndArgs)
}

// flakyTransactions fails selected calls of the wrapped repository.
type flakyTransactions struct {
	repository.TransactionRepository

	failCreate      bool
	failCreateBatch bool
	failUpdate      bool
	failDelete      bool

	paymentCalls    int
	failPaymentCall int

	// When set, Delete signals entered and waits for block to be closed.
	entered chan struct{}
	block   chan struct{}
}

func (f *flakyTransactions) Create(ctx context.Context, tx *domain.Transaction) error {
	if f.failCreate {
		return errBoom
	}
	return f.TransactionRepository.Create(ctx, tx)
}

func (f *flakyTransactions) CreateBatch(ctx context.Context, txs []*domain.Transaction) error {
	if f.failCreateBatch {
		return errBoom
	}
	return f.TransactionRepository.CreateBatch(ctx, txs)
}

func (f *flakyTransactions) Update(ctx context.Context, tx *domain.Transaction) error {
	if f.failUpdate {
		return errBoom
	}
	return f.TransactionRepository.Update(ctx, tx)
}

func (f *flakyTransactions) UpdatePayment(ctx context.Context, saleID int32, paid, outstanding decimal.Decimal, status domain.PaymentStatus) error {
	f.paymentCalls++
	if f.failPaymentCall == f.paymentCalls {
		return errBoom
	}
	return f.TransactionRepository.UpdatePayment(ctx, saleID, paid, outstanding, status)
}

func (f *flakyTransactions) Delete(ctx context.Context, ids []int32) error {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.block
	}
	if f.failDelete {
		return errBoom
	}
	return f.TransactionRepository.Delete(ctx, ids)
}

// flakyResellers fails chosen AdjustBalance calls, counted from 1.
type flakyResellers struct {
	repository.ResellerRepository

	adjustCalls    int
	failAdjustCall int
	failAlways     bool
}

func (f *flakyResellers) AdjustBalance(ctx context.Context, id int32, delta decimal.Decimal) (decimal.Decimal, error) {
	f.adjustCalls++
	if f.failAlways || f.failAdjustCall == f.adjustCalls {
		return decimal.Zero, errBoom
	}
	return f.ResellerRepository.AdjustBalance(ctx, id, delta)
}
