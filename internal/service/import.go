package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/logger"
	"reseller-ledger-backend/internal/saga"
)

// Import inserts spreadsheet rows as one unit. Rows that cannot be resolved
// or fail validation are skipped and reported; the rest are inserted
// together or not at all.
func (s *ledgerService) Import(ctx context.Context, rows []domain.ImportRow) (*ImportResult, error) {
	logger.EnterMethod("ledgerService.Import", "rows", len(rows))

	if len(rows) == 0 {
		return nil, ErrEmptyImport
	}
	if len(rows) > s.maxImportRows {
		return nil, fmt.Errorf("%w: %d rows, limit is %d", ErrTooManyRows, len(rows), s.maxImportRows)
	}

	resellers, err := s.resellers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list resellers: %w", err)
	}
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	resellerByName := make(map[string]domain.Reseller, len(resellers))
	for _, r := range resellers {
		resellerByName[r.Name] = r
	}
	productByName := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productByName[p.Name] = p
	}

	type pendingRow struct {
		row int
		tx  *domain.Transaction
	}
	result := &ImportResult{}
	var pending []pendingRow
	for i, row := range rows {
		tx, reason := s.resolveRow(row, resellerByName, productByName)
		if reason != "" {
			result.skip(i+1, reason)
			continue
		}
		tx.CreatedAt = s.now()
		pending = append(pending, pendingRow{row: i + 1, tx: tx})
	}
	if len(pending) == 0 {
		logger.ExitMethod("ledgerService.Import", "inserted", 0, "skipped", len(result.Skipped))
		return result, nil
	}

	involved := make([]int32, 0, len(pending))
	for _, p := range pending {
		involved = append(involved, p.tx.ResellerID)
	}
	unlock := s.locks.lock(involved...)
	defer unlock()

	// Clearance rows are checked and given a status against the balance and
	// open dues they see in row order, earlier rows of the batch included.
	balance := make(map[int32]decimal.Decimal)
	open := make(map[int32]decimal.Decimal)
	deltas := make(map[int32]decimal.Decimal)
	var txs []*domain.Transaction
	for _, p := range pending {
		tx, id := p.tx, p.tx.ResellerID
		if _, ok := balance[id]; !ok {
			r, err := s.getReseller(ctx, id)
			if err != nil {
				return nil, err
			}
			_, outstanding, err := s.openDues(ctx, id)
			if err != nil {
				return nil, err
			}
			balance[id] = r.DueBalance
			open[id] = outstanding
		}

		delta := tx.Outstanding()
		if tx.IsClearance() {
			switch {
			case !open[id].IsPositive():
				result.skip(p.row, ErrNoOutstandingDues.Error())
				continue
			case tx.Paid.GreaterThan(open[id]):
				result.skip(p.row, fmt.Sprintf("%s: paying %s against %s outstanding", ErrOverClearance, tx.Paid.StringFixed(2), open[id].StringFixed(2)))
				continue
			}
			tx.PaymentStatus = domain.CalculateStatus(domain.TransactionTypeClearance, decimal.Zero, tx.Paid, balance[id])
			delta = tx.Paid.Neg()
		}
		balance[id] = balance[id].Add(delta)
		open[id] = open[id].Add(delta)
		deltas[id] = deltas[id].Add(delta)
		txs = append(txs, tx)
	}
	sort.SliceStable(result.Skipped, func(i, j int) bool { return result.Skipped[i].Row < result.Skipped[j].Row })
	if len(txs) == 0 {
		logger.ExitMethod("ledgerService.Import", "inserted", 0, "skipped", len(result.Skipped))
		return result, nil
	}

	const op = "import transactions"
	var balances []domain.BalanceDelta
	var sales []domain.SaleDelta
	sg := s.newSaga(op)
	fail := func(err error) (*ImportResult, error) {
		err = sg.Abort(ctx, fmt.Errorf("failed to import transactions: %w", err))
		logger.ExitMethodWithError("ledgerService.Import", err)
		return nil, err
	}

	for _, id := range sortedKeys(deltas) {
		if err := s.adjust(ctx, sg, op, id, deltas[id], &balances); err != nil {
			return fail(err)
		}
	}
	if err := sg.Run(ctx, s.insertBatchStep(txs)); err != nil {
		return fail(err)
	}

	// Clearances pay into open sales oldest first, the batch's own sales
	// included, once every row has an id.
	batch := make(map[int32]*domain.Transaction, len(txs))
	for _, tx := range txs {
		batch[tx.ID] = tx
	}
	for _, tx := range txs {
		if !tx.IsClearance() {
			continue
		}
		before := tx.Clone()
		applied, err := s.allocate(ctx, sg, op, tx.ResellerID, tx.Paid)
		if err != nil {
			return fail(err)
		}
		for _, d := range applied {
			if sale, ok := batch[d.SaleID]; ok {
				sale.Paid = d.NewPaid
				sale.Sale.Outstanding = d.NewOutstanding
				sale.PaymentStatus = d.NewStatus
			}
		}
		sales = append(sales, applied...)
		tx.Clearance.Allocations = domain.AllocationsFrom(applied)
		if len(tx.Clearance.Allocations) == 0 {
			continue
		}
		if err := sg.Run(ctx, s.updateStep(&before, tx)); err != nil {
			return fail(err)
		}
	}

	for _, tx := range txs {
		result.Inserted = append(result.Inserted, tx.Clone())
	}
	s.record(ctx, domain.OperationImport, nil, cloneAll(result.Inserted), balances, sales)
	logger.ExitMethod("ledgerService.Import", "inserted", len(result.Inserted), "skipped", len(result.Skipped), "allocations", len(sales))
	return result, nil
}

func (r *ImportResult) skip(row int, reason string) {
	logger.Warn("Skipping import row", "row", row, "reason", reason)
	r.Skipped = append(r.Skipped, domain.SkippedRow{Row: row, Reason: reason})
}

// resolveRow turns a row into a transaction, or explains why it cannot.
func (s *ledgerService) resolveRow(row domain.ImportRow, resellers map[string]domain.Reseller, products map[string]domain.Product) (*domain.Transaction, string) {
	if err := s.validate.Struct(row); err != nil {
		return nil, describeValidation(err)
	}
	date, err := time.Parse(dateLayout, strings.TrimSpace(row.Date))
	if err != nil {
		return nil, fmt.Sprintf("invalid date %q", row.Date)
	}
	reseller, ok := resellers[row.MemberName]
	if !ok {
		return nil, fmt.Sprintf("unknown member %q", row.MemberName)
	}
	if row.Paid.IsNegative() {
		return nil, "paid must not be negative"
	}

	txType, _ := domain.ParseTransactionType(row.TransactionType)
	if txType == domain.TransactionTypeClearance {
		if !row.Paid.IsPositive() {
			return nil, "clearance paid must be greater than zero"
		}
		tx := domain.NewClearance(date, reseller.ID, row.Paid)
		return &tx, ""
	}

	product, ok := products[row.ProductName]
	if !ok {
		return nil, fmt.Sprintf("unknown product %q", row.ProductName)
	}
	if row.Qty <= 0 {
		return nil, "qty must be greater than zero"
	}
	price := product.PriceFor(row.Qty)
	if row.Price != nil {
		if row.Price.IsNegative() {
			return nil, "price must not be negative"
		}
		price = *row.Price
	}
	tx := domain.NewSale(date, reseller.ID, product.ID, row.Qty, price, row.Paid)
	if tx.Paid.GreaterThan(tx.Total()) {
		return nil, "paid exceeds total"
	}
	return &tx, ""
}

// insertBatchStep inserts txs atomically and deletes them on compensation.
func (s *ledgerService) insertBatchStep(txs []*domain.Transaction) saga.Step {
	return saga.Step{
		Name: fmt.Sprintf("insert %d transaction(s)", len(txs)),
		Do: func(ctx context.Context) error {
			return s.transactions.CreateBatch(ctx, txs)
		},
		Compensate: func(ctx context.Context) error {
			ids := make([]int32, 0, len(txs))
			for _, tx := range txs {
				ids = append(ids, tx.ID)
			}
			return s.transactions.Delete(ctx, ids)
		},
	}
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func sortedKeys(m map[int32]decimal.Decimal) []int32 {
	keys := make([]int32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func cloneAll(txs []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.Clone())
	}
	return out
}
