package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"reseller-ledger-backend/internal/domain"
)

// Header aliases accepted by ParseImportCSV, including the export headers so
// an export can be edited and imported back.
var importHeaderAliases = map[string]string{
	"date":             "date",
	"member":           "member_name",
	"member_name":      "member_name",
	"product":          "product_name",
	"product_name":     "product_name",
	"qty":              "qty",
	"quantity":         "qty",
	"price":            "price",
	"paid":             "paid",
	"transaction_type": "transaction_type",
	"type":             "transaction_type",
}

var requiredImportHeaders = []string{"date", "member_name", "transaction_type"}

// ParseImportCSV reads import rows from CSV with a header line. Rows whose
// numbers cannot be parsed are returned as skipped; row numbers are 1-based
// and exclude the header.
func ParseImportCSV(r io.Reader) ([]domain.ImportRow, []domain.SkippedRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrEmptyImport
		}
		return nil, nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		key = strings.ReplaceAll(key, " ", "_")
		if canonical, ok := importHeaderAliases[key]; ok {
			columns[canonical] = i
		}
	}
	for _, h := range requiredImportHeaders {
		if _, ok := columns[h]; !ok {
			return nil, nil, fmt.Errorf("%w: missing column %q", ErrInvalidFieldValue, h)
		}
	}

	var rows []domain.ImportRow
	var skipped []domain.SkippedRow
	for n := 1; ; n++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read csv row %d: %w", n, err)
		}
		if isBlankRecord(record) {
			n--
			continue
		}

		field := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		row := domain.ImportRow{
			Date:            field("date"),
			MemberName:      field("member_name"),
			ProductName:     field("product_name"),
			TransactionType: field("transaction_type"),
		}
		if reason := parseImportNumbers(&row, field("qty"), field("price"), field("paid")); reason != "" {
			skipped = append(skipped, domain.SkippedRow{Row: n, Reason: reason})
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

func parseImportNumbers(row *domain.ImportRow, qty, price, paid string) string {
	if qty != "" {
		v, err := strconv.ParseInt(qty, 10, 32)
		if err != nil {
			return fmt.Sprintf("invalid qty %q", qty)
		}
		row.Qty = int32(v)
	}
	if price != "" {
		v, err := decimal.NewFromString(price)
		if err != nil {
			return fmt.Sprintf("invalid price %q", price)
		}
		row.Price = &v
	}
	if paid != "" {
		v, err := decimal.NewFromString(paid)
		if err != nil {
			return fmt.Sprintf("invalid paid %q", paid)
		}
		row.Paid = v
	}
	return ""
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
