package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"reseller-ledger-backend/internal/security"
)

// NewRouter wires every ledger endpoint. Route names are the keys of
// config.EndpointSecurityConfig.
func NewRouter(h *Handler, tm security.TokenManager) *mux.Router {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware)
	router.Use(NewAuthMiddleware(tm).Handler)

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet).Name("Health")

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/sales", h.CreateSale).Methods(http.MethodPost).Name("CreateSale")
	api.HandleFunc("/clearances", h.CreateClearance).Methods(http.MethodPost).Name("CreateClearance")

	api.HandleFunc("/transactions", h.ListTransactions).Methods(http.MethodGet).Name("ListTransactions")
	api.HandleFunc("/transactions", h.DeleteTransactions).Methods(http.MethodDelete).Name("DeleteTransactions")
	api.HandleFunc("/transactions/duplicate", h.DuplicateSales).Methods(http.MethodPost).Name("DuplicateSales")
	api.HandleFunc("/transactions/{id:[0-9]+}", h.GetTransaction).Methods(http.MethodGet).Name("GetTransaction")
	api.HandleFunc("/transactions/{id:[0-9]+}", h.EditTransaction).Methods(http.MethodPatch).Name("EditTransaction")

	api.HandleFunc("/import", h.ImportRows).Methods(http.MethodPost).Name("ImportRows")
	api.HandleFunc("/import/csv", h.ImportCSV).Methods(http.MethodPost).Name("ImportCSV")
	api.HandleFunc("/export", h.ExportCSV).Methods(http.MethodGet).Name("ExportCSV")

	api.HandleFunc("/history", h.GetHistory).Methods(http.MethodGet).Name("GetHistory")
	api.HandleFunc("/history/undo", h.Undo).Methods(http.MethodPost).Name("Undo")
	api.HandleFunc("/history/redo", h.Redo).Methods(http.MethodPost).Name("Redo")

	api.HandleFunc("/resellers/{id:[0-9]+}/balance", h.GetResellerBalance).Methods(http.MethodGet).Name("GetResellerBalance")

	return router
}
