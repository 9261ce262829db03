package service

import (
	"context"
	"fmt"
	"strconv"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/logger"
	"reseller-ledger-backend/internal/repository"
)

// ExportColumns is the header row of a transaction export.
var ExportColumns = []string{
	"Date", "Transaction Type", "Member", "Product", "Quantity",
	"Price", "Total", "Paid", "Outstanding", "Payment Status",
}

type exportService struct {
	resellers    repository.ResellerRepository
	products     repository.ProductRepository
	transactions repository.TransactionRepository
}

func NewExportService(repos Repositories) ExportService {
	return &exportService{
		resellers:    repos.Resellers,
		products:     repos.Products,
		transactions: repos.Transactions,
	}
}

func (s *exportService) Export(ctx context.Context, filter domain.TransactionFilter) ([][]string, error) {
	logger.EnterMethod("exportService.Export")

	txs, err := s.transactions.List(ctx, filter)
	if err != nil {
		logger.ExitMethodWithError("exportService.Export", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	resellers, err := s.resellers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list resellers: %w", err)
	}
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	memberNames := make(map[int32]string, len(resellers))
	for _, r := range resellers {
		memberNames[r.ID] = r.Name
	}
	productNames := make(map[int32]string, len(products))
	for _, p := range products {
		productNames[p.ID] = p.Name
	}

	rows := make([][]string, 0, len(txs)+1)
	rows = append(rows, append([]string(nil), ExportColumns...))
	for _, tx := range txs {
		row := []string{
			tx.Date.Format(dateLayout),
			string(tx.Type()),
			memberNames[tx.ResellerID],
			"", "", "", "",
			tx.Paid.StringFixed(2),
			"",
			string(tx.PaymentStatus),
		}
		if tx.IsSale() {
			row[3] = productNames[tx.Sale.ProductID]
			row[4] = strconv.Itoa(int(tx.Sale.Qty))
			row[5] = tx.Sale.Price.StringFixed(2)
			row[6] = tx.Sale.Total.StringFixed(2)
			row[8] = tx.Sale.Outstanding.StringFixed(2)
		}
		rows = append(rows, row)
	}

	logger.ExitMethod("exportService.Export", "rows", len(txs))
	return rows, nil
}
