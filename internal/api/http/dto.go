package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/service"
)

const dateLayout = "2006-01-02"

type createSaleRequest struct {
	Date       string           `json:"date" validate:"required,datetime=2006-01-02"`
	ResellerID int32            `json:"member_id" validate:"required,gt=0"`
	ProductID  int32            `json:"product_id" validate:"required,gt=0"`
	Qty        int32            `json:"qty" validate:"required,gt=0"`
	Price      *decimal.Decimal `json:"price,omitempty"`
	Paid       decimal.Decimal  `json:"paid"`
}

func (r createSaleRequest) toInput() service.SaleInput {
	date, _ := time.Parse(dateLayout, r.Date)
	return service.SaleInput{
		Date:       date,
		ResellerID: r.ResellerID,
		ProductID:  r.ProductID,
		Qty:        r.Qty,
		Price:      r.Price,
		Paid:       r.Paid,
	}
}

type createClearanceRequest struct {
	Date       string          `json:"date" validate:"required,datetime=2006-01-02"`
	ResellerID int32           `json:"member_id" validate:"required,gt=0"`
	Paid       decimal.Decimal `json:"paid"`
}

func (r createClearanceRequest) toInput() service.ClearanceInput {
	date, _ := time.Parse(dateLayout, r.Date)
	return service.ClearanceInput{Date: date, ResellerID: r.ResellerID, Paid: r.Paid}
}

// editFieldRequest carries one inline spreadsheet edit. Value is the raw
// cell text and is parsed by the ledger according to Field.
type editFieldRequest struct {
	Field string `json:"field" validate:"required"`
	Value string `json:"value"`
}

type selectionRequest struct {
	IDs []int32 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

type importRequest struct {
	Rows []domain.ImportRow `json:"rows" validate:"required,min=1"`
}

type deleteResponse struct {
	Deleted int `json:"deleted"`
}

type operationResponse struct {
	Operation *domain.Operation `json:"operation"`
}

type transactionsResponse struct {
	Transactions []domain.Transaction `json:"transactions"`
}

func pathID(r *http.Request, name string) (int32, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", errBadRequest, name)
	}
	return int32(id), nil
}

// parseFilter reads reseller_id, type, status (comma separated), from and to
// query parameters.
func parseFilter(r *http.Request) (domain.TransactionFilter, error) {
	q := r.URL.Query()
	var filter domain.TransactionFilter

	if v := q.Get("reseller_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return filter, fmt.Errorf("%w: invalid reseller_id", errBadRequest)
		}
		rid := int32(id)
		filter.ResellerID = &rid
	}
	if v := q.Get("type"); v != "" {
		t, ok := domain.ParseTransactionType(v)
		if !ok {
			return filter, fmt.Errorf("%w: invalid type %q", errBadRequest, v)
		}
		filter.Type = t
	}
	if v := q.Get("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			filter.Statuses = append(filter.Statuses, domain.PaymentStatus(strings.TrimSpace(s)))
		}
	}
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return filter, fmt.Errorf("%w: invalid %s date", errBadRequest, name)
		}
		*dst = &t
	}
	return filter, nil
}
