package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"reseller-ledger-backend/internal/security"
	"reseller-ledger-backend/internal/service"
)

// Handler serves the ledger JSON API.
type Handler struct {
	ledger   service.LedgerService
	history  service.HistoryService
	export   service.ExportService
	validate *validator.Validate
}

func NewHandler(ledger service.LedgerService, history service.HistoryService, export service.ExportService) *Handler {
	return &Handler{
		ledger:   ledger,
		history:  history,
		export:   export,
		validate: validator.New(),
	}
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return h.validate.Struct(dst)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := h.ledger.CreateSale(r.Context(), req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *Handler) CreateClearance(w http.ResponseWriter, r *http.Request) {
	var req createClearanceRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := h.ledger.CreateClearance(r.Context(), req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := h.ledger.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionsResponse{Transactions: txs})
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := h.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) EditTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req editFieldRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := h.ledger.EditField(r.Context(), id, req.Field, req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) DeleteTransactions(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.ledger.DeleteTransactions(r.Context(), req.IDs); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: len(req.IDs)})
}

func (h *Handler) DuplicateSales(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.ledger.Duplicate(r.Context(), req.IDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) ImportRows(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.ledger.Import(r.Context(), req.Rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := h.history.History(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	op, err := h.history.Undo(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, operationResponse{Operation: op})
}

func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	op, err := h.history.Redo(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, operationResponse{Operation: op})
}

// GetResellerBalance is open to admins and to the reseller it describes.
func (h *Handler) GetResellerBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	claims, ok := ClaimsFromContext(r.Context())
	if !ok || (!claims.HasRole(security.RoleAdmin) && claims.UserID != id) {
		writeError(w, r, fmt.Errorf("%w: balance of reseller %d", errForbidden, id))
		return
	}
	dues, err := h.ledger.GetResellerDues(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dues)
}
