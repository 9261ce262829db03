package http_test

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "reseller-ledger-backend/internal/api/http"
	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/repository/memory"
	"reseller-ledger-backend/internal/security"
	"reseller-ledger-backend/internal/service"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testServer struct {
	t      *testing.T
	server *httptest.Server
	store  *memory.Store
	admin  string
	alice  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.NewStore()
	store.Resellers.Add(domain.Reseller{ID: 1, Name: "Alice"})
	store.Resellers.Add(domain.Reseller{ID: 2, Name: "Bob"})
	store.Products.Add(domain.Product{ID: 1, Name: "Widget", MRP: decimal.NewFromInt(100)})

	repos := service.Repositories{
		Resellers:     store.Resellers,
		Products:      store.Products,
		Transactions:  store.Transactions,
		Compensations: store.Compensations,
		History:       store.History,
		Locks:         service.NewResellerLocks(),
	}
	alerts := service.NewAlertService("", "", "", nil)
	history := service.NewHistoryService(repos, alerts, 10)
	ledger := service.NewLedgerService(repos, history, alerts, 100)
	handler := api.NewHandler(ledger, history, service.NewExportService(repos))

	tm := security.NewTokenManager(testSecret, time.Hour)
	admin, err := tm.GenerateAccessToken(100, "ops@example.com", []string{security.RoleAdmin})
	require.NoError(t, err)
	alice, err := tm.GenerateAccessToken(1, "alice@example.com", []string{security.RoleReseller})
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewRouter(handler, tm))
	t.Cleanup(srv.Close)

	return &testServer{t: t, server: srv, store: store, admin: admin, alice: alice}
}

func (s *testServer) do(method, path, token, contentType, body string) *http.Response {
	s.t.Helper()
	req, err := http.NewRequest(method, s.server.URL+path, strings.NewReader(body))
	require.NoError(s.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.server.Client().Do(req)
	require.NoError(s.t, err)
	s.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) json(method, path, body string) *http.Response {
	return s.do(method, path, s.admin, "application/json", body)
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s *testServer) balance(id int32) string {
	s.t.Helper()
	r, err := s.store.Resellers.GetByID(s.t.Context(), id)
	require.NoError(s.t, err)
	return r.DueBalance.String()
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(http.MethodGet, "/health", "", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	t.Run("Missing token", func(t *testing.T) {
		resp := s.do(http.MethodGet, "/api/v1/transactions", "", "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Garbage token", func(t *testing.T) {
		resp := s.do(http.MethodGet, "/api/v1/transactions", "not-a-jwt", "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Reseller on admin route", func(t *testing.T) {
		resp := s.do(http.MethodPost, "/api/v1/sales", s.alice, "application/json", `{}`)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestSaleAndClearanceFlow(t *testing.T) {
	s := newTestServer(t)

	resp := s.json(http.MethodPost, "/api/v1/sales", `{"date":"2024-01-01","member_id":1,"product_id":1,"qty":3,"paid":"50"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sale := decodeBody[domain.Transaction](t, resp)
	assert.Equal(t, domain.PaymentStatusPartiallyPaid, sale.PaymentStatus)
	require.NotNil(t, sale.Sale)
	assert.Equal(t, "250", sale.Sale.Outstanding.String())
	assert.Equal(t, "250", s.balance(1))

	resp = s.json(http.MethodPost, "/api/v1/clearances", `{"date":"2024-01-05","member_id":1,"paid":250}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	clearance := decodeBody[domain.Transaction](t, resp)
	assert.Equal(t, domain.PaymentStatusCompleteClearance, clearance.PaymentStatus)
	assert.Equal(t, "0", s.balance(1))

	resp = s.json(http.MethodGet, "/api/v1/transactions?reseller_id=1&type=Sale", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[struct {
		Transactions []domain.Transaction `json:"transactions"`
	}](t, resp)
	require.Len(t, list.Transactions, 1)
	assert.Equal(t, domain.PaymentStatusDueCleared, list.Transactions[0].PaymentStatus)

	resp = s.json(http.MethodPost, "/api/v1/history/undo", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "250", s.balance(1))

	resp = s.json(http.MethodGet, "/api/v1/history", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hist := decodeBody[domain.History](t, resp)
	assert.Len(t, hist.Undo, 1)
	assert.Len(t, hist.Redo, 1)

	resp = s.json(http.MethodPost, "/api/v1/history/redo", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0", s.balance(1))
}

func TestCreateSaleValidation(t *testing.T) {
	s := newTestServer(t)

	resp := s.json(http.MethodPost, "/api/v1/sales", `{"date":"01/02/2024","member_id":1,"product_id":1}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[api.ErrorResponse](t, resp)
	assert.Equal(t, "validation failed", body.Error)
	assert.Contains(t, body.Details, "Date")
	assert.Contains(t, body.Details, "Qty")

	resp = s.json(http.MethodPost, "/api/v1/sales", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.json(http.MethodPost, "/api/v1/clearances", `{"date":"2024-01-01","member_id":1,"paid":10}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, service.ErrNoOutstandingDues.Error(), decodeBody[api.ErrorResponse](t, resp).Error)

	resp = s.json(http.MethodPost, "/api/v1/sales", `{"date":"2024-01-01","member_id":9,"product_id":1,"qty":1}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "0", s.balance(1))
}

func TestEditAndDelete(t *testing.T) {
	s := newTestServer(t)

	resp := s.json(http.MethodPost, "/api/v1/sales", `{"date":"2024-01-01","member_id":1,"product_id":1,"qty":1}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sale := decodeBody[domain.Transaction](t, resp)
	path := "/api/v1/transactions/" + itoa(sale.ID)

	resp = s.json(http.MethodPatch, path, `{"field":"qty","value":"2"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "200", s.balance(1))

	resp = s.json(http.MethodPatch, path, `{"field":"total","value":"5"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.json(http.MethodGet, "/api/v1/transactions/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.json(http.MethodDelete, "/api/v1/transactions", `{"ids":[`+itoa(sale.ID)+`]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0", s.balance(1))
	assert.Equal(t, 0, s.store.Transactions.Count())

	resp = s.json(http.MethodDelete, "/api/v1/transactions", `{"ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDuplicateRejectsClearanceOnlySelection(t *testing.T) {
	s := newTestServer(t)

	s.json(http.MethodPost, "/api/v1/sales", `{"date":"2024-01-01","member_id":2,"product_id":1,"qty":1}`)
	resp := s.json(http.MethodPost, "/api/v1/clearances", `{"date":"2024-01-02","member_id":2,"paid":10}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	clearance := decodeBody[domain.Transaction](t, resp)

	resp = s.json(http.MethodPost, "/api/v1/transactions/duplicate", `{"ids":[`+itoa(clearance.ID)+`]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResellerBalanceAccess(t *testing.T) {
	s := newTestServer(t)
	s.json(http.MethodPost, "/api/v1/sales", `{"date":"2024-01-01","member_id":1,"product_id":1,"qty":1,"price":"40"}`)

	resp := s.do(http.MethodGet, "/api/v1/resellers/1/balance", s.alice, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dues := decodeBody[service.ResellerDues](t, resp)
	assert.Equal(t, "40", dues.Reseller.DueBalance.String())
	assert.Equal(t, "40", dues.OutstandingDue.String())

	resp = s.do(http.MethodGet, "/api/v1/resellers/2/balance", s.alice, "", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(http.MethodGet, "/api/v1/resellers/2/balance", s.admin, "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUndoWithEmptyHistory(t *testing.T) {
	s := newTestServer(t)
	resp := s.json(http.MethodPost, "/api/v1/history/undo", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestImportAndExportCSV(t *testing.T) {
	s := newTestServer(t)

	input := "Date,Transaction Type,Member,Product,Quantity,Price,Paid\n" +
		"2024-01-01,Sale,Alice,Widget,2,,0\n" +
		"2024-01-02,Sale,Nobody,Widget,1,,0\n" +
		"2024-01-03,Sale,Bob,Widget,abc,,0\n"

	resp := s.do(http.MethodPost, "/api/v1/import/csv", s.admin, "text/csv", input)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	result := decodeBody[service.ImportResult](t, resp)
	assert.Len(t, result.Inserted, 1)
	assert.Len(t, result.Skipped, 2)
	assert.Equal(t, "200", s.balance(1))

	resp = s.do(http.MethodPost, "/api/v1/import/csv", s.admin, "application/json", input)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp = s.do(http.MethodGet, "/api/v1/export?reseller_id=1", s.admin, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, service.ExportColumns, records[0])
	assert.Equal(t, "Alice", records[1][2])
	assert.Equal(t, "200.00", records[1][6])
}

func TestImportRowsJSON(t *testing.T) {
	s := newTestServer(t)

	resp := s.json(http.MethodPost, "/api/v1/import", `{"rows":[{"date":"2024-01-01","member_name":"Bob","product_name":"Widget","qty":1,"price":"25","paid":"0","transaction_type":"Sale"}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "25", s.balance(2))

	resp = s.json(http.MethodPost, "/api/v1/import", `{"rows":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func itoa(id int32) string {
	return decimal.NewFromInt32(id).String()
}
